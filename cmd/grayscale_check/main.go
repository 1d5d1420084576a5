package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"docvision-rest/xray"
)

/*

 go run ./cmd/grayscale_check -file=chest_pa.png
 go run ./cmd/grayscale_check -file=study.dcm

*/

func main() {
	var (
		file = flag.String("file", "", "image file to check (PNG/JPEG/BMP/TIFF/DICOM)")
	)
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read %s: %v", *file, err)
	}

	kind := "raster"
	if xray.IsDICOM(data) {
		kind = "DICOM"
	}

	img, err := xray.Decode(data)
	if err != nil {
		log.Fatalf("%s (%s): %v", *file, kind, err)
	}

	b := img.Bounds()
	fmt.Printf("%s: grayscale %s image, %dx%d\n", *file, kind, b.Dx(), b.Dy())
}
