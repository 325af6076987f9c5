// Command alias-hunter is a tool for analysing dataflow graphs of traced
// programs to determine which values may share underlying storage.
//
// The analysis builds a points-to graph over abstract memory locations and
// a write index over graph nodes, then answers may-alias, write-existence
// and safe-reordering queries used by graph optimisation passes.
package main
