// Command photoflow copies a directory tree of photos to a destination,
// passing each photo through a configurable composition of stages.
//
//	photoflow run --input ./camera --output ./library --stages landscape
//	photoflow run --input ./camera --output ./library --topology branches.yaml
//	photoflow stages
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
