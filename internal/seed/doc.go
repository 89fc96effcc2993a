// Package seed reads crawl targets from CSV or TSV files.
//
// Each row carries an entity id and a seed URL. The reader accepts the
// layouts found in practice: comma or tab separated, with a header row, and
// rows where both values were wrapped into a single column such as
//
//	"3.70014E+11,http://www.charlottesecondary.org/"
//
// Numeric ids written in scientific notation by spreadsheet exports are
// brought back to plain decimal form. Bad rows are reported and skipped;
// they never abort the read.
package seed
