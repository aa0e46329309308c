package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/theos-project/exfat-imager"
)

type rootParameters struct {
	Filepath string `short:"f" long:"filepath" description:"File-path of exFAT volume image" required:"true"`
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

	f, err := os.Open(rootArguments.Filepath)
	log.PanicIf(err)

	defer f.Close()

	ex, err := exfat.ParseExfat(exfat.ParseExfatOptions{ReadSeeker: f})
	log.PanicIf(err)

	chains, err := ex.Fat.ToChains()
	log.PanicIf(err)

	fmt.Printf("Cluster count: %s\n", humanize.Comma(int64(ex.BootSector.ClusterCount)))
	fmt.Printf("Root first cluster: %d\n", ex.BootSector.FirstClusterOfRootDirectory)
	fmt.Printf("Chains recovered from FAT: %d\n", len(chains))
}
