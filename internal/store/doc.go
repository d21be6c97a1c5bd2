// Package store reads and writes the columnar output files.
//
// Files are Parquet, written with apache/arrow-go. A Writer opens its file on
// the first write so a run that fetches nothing leaves no file behind. A file
// is only valid after Close, which writes the footer and syncs it to disk.
//
// Merge folds a side file into a base file in bounded chunks, writing to
// "<base>.merge_tmp" and renaming over the base only after the new file is
// complete.
package store
