// Package compiler turns authored CUE script files into command lists and
// checks command lists for structural problems before they run.
//
// YAML and JSON script files are decoded by package ir; this package adds
// the CUE front end (with source positions in errors) and the structural
// validator shared by every format.
package compiler
