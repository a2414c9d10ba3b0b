package main

import (
	"context"
	"flag"
	"log"

	"github.com/mogaika/moiety/archive"
	"github.com/mogaika/moiety/resource"
	"github.com/mogaika/moiety/vfs"
)

func main() {
	var inPath, outPath string
	var verbose bool
	flag.StringVar(&inPath, "i", "", "Path to resource tree folder (<stack>/<TYPE>/<id>.<ext>)")
	flag.StringVar(&outPath, "o", "riven.db", "Output archive file")
	flag.BoolVar(&verbose, "v", false, "Print every packed resource")
	flag.Parse()

	if inPath == "" {
		log.Fatal("Provide path to folder with resources. Use --help if you stuck.")
	}

	a, err := archive.Open(outPath)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	log.Println("Starting packing to archive ", outPath)
	log.Println("This can take a lot of time. Please be patient...")
	n, err := a.Import(context.Background(), vfs.NewDirectoryDriver(inPath), func(key resource.Key) {
		if verbose {
			log.Printf("[packer] %v", key)
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Complete ! %d resources packed", n)
}
