/*Package interval implements interval-union operations for sets of genomic
  coordinates read from BED files.
  (Note the 'union'.  Overlapping intervals are merged, not tracked
  separately.)  Its main consumer is region-restricted pileup-summary
  encoding, which walks the union of the requested intervals.
  It assumes every position fits in a PosType, which is currently defined as
  int32 since that is what pileup row offsets are limited to.
*/
package interval
