package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/theos-project/exfat-imager"
)

type rootParameters struct {
	SourcePath       string `short:"s" long:"source-path" description:"Host directory to pack into the volume" required:"true"`
	OutputFilepath   string `short:"o" long:"output-filepath" description:"File-path to write the volume image to" required:"true"`
	TemplateFilepath string `short:"t" long:"template-filepath" description:"Existing exFAT image to borrow boot-sector flags/boot-code from" required:"true"`
	SectorSize       uint32 `long:"sector-size" description:"Bytes per sector" default:"512"`
	SectorsPerClust  uint32 `long:"sectors-per-cluster" description:"Sectors per cluster" default:"8"`
	NumberOfFats     uint8  `long:"number-of-fats" description:"Number of FATs (1 or 2)" default:"1"`
	WithVolumeGuid   bool   `long:"with-volume-guid" description:"Stamp a VolumeGuid directory entry"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	err = exfat.HostPreflight(rootArguments.SourcePath, rootArguments.OutputFilepath)
	log.PanicIf(err)

	tf, err := os.Open(rootArguments.TemplateFilepath)
	log.PanicIf(err)

	defer tf.Close()

	ter := exfat.NewExfatReader(tf)

	err = ter.Parse()
	log.PanicIf(err)

	template := ter.ActiveBootRegion()

	ex, err := exfat.Build(exfat.BuildOptions{
		Template:          template,
		SourcePath:        rootArguments.SourcePath,
		SectorSize:        rootArguments.SectorSize,
		SectorsPerCluster: rootArguments.SectorsPerClust,
		NumberOfFats:      rootArguments.NumberOfFats,
		HasVolumeGuid:     rootArguments.WithVolumeGuid,
		VolumeSerial:      uint32(time.Now().Unix()),
	})
	log.PanicIf(err)

	data := ex.Bytes()

	g, err := os.Create(rootArguments.OutputFilepath)
	log.PanicIf(err)

	defer g.Close()

	_, err = g.Write(data)
	log.PanicIf(err)

	fmt.Printf("Wrote volume: %s bytes\n", humanize.Comma(int64(len(data))))
}
