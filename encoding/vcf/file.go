package vcf

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bgzf"
	"github.com/pkg/errors"
)

// File is a Reader over an opened VCF path.  Close releases the underlying
// file and, for compressed inputs, the BGZF decompressor.
type File struct {
	*Reader
	ctx  context.Context
	file file.File
	bgzf *bgzf.Reader
}

// Open opens the VCF file at path, resolving it through the file package so
// S3 paths work, and decompressing through BGZF when the path ends in ".gz".
func Open(ctx context.Context, path string) (*File, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "vcf.Open %s", path)
	}
	var (
		in   io.Reader = f.Reader(ctx)
		bgzr *bgzf.Reader
	)
	if strings.HasSuffix(path, ".gz") {
		if bgzr, err = bgzf.NewReader(in, 0); err != nil {
			_ = f.Close(ctx)
			return nil, errors.Wrapf(err, "vcf.Open %s", path)
		}
		in = bgzr
	}
	r, err := newReader(in, path)
	if err != nil {
		if bgzr != nil {
			_ = bgzr.Close()
		}
		_ = f.Close(ctx)
		return nil, err
	}
	return &File{Reader: r, ctx: ctx, file: f, bgzf: bgzr}, nil
}

// Close implements io.Closer.
func (f *File) Close() (err error) {
	if f.bgzf != nil {
		err = f.bgzf.Close()
	}
	if e := f.file.Close(f.ctx); e != nil && err == nil {
		err = e
	}
	return err
}
