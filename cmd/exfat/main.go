package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/theos-project/exfat-imager"
)

func main() {
	app := &cli.App{
		Name:  "exfat",
		Usage: "build, parse, list, and extract exFAT volume images",
		Commands: []*cli.Command{
			buildCommand(),
			parseCommand(),
			listCommand(),
			extractCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.PrintError(log.Wrap(err))
		os.Exit(1)
	}
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "pack a host directory into a new exFAT volume image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Required: true},
			&cli.StringFlag{Name: "output", Required: true},
			&cli.StringFlag{Name: "template", Required: true},
			&cli.Uint64Flag{Name: "sector-size", Value: 512},
			&cli.Uint64Flag{Name: "sectors-per-cluster", Value: 8},
			&cli.UintFlag{Name: "number-of-fats", Value: 1},
			&cli.BoolFlag{Name: "with-volume-guid"},
		},
		Action: func(c *cli.Context) (err error) {
			defer func() {
				if state := recover(); state != nil {
					err = log.Wrap(state.(error))
				}
			}()

			sourcePath := c.String("source")
			outputPath := c.String("output")

			err = exfat.HostPreflight(sourcePath, outputPath)
			log.PanicIf(err)

			tf, err := os.Open(c.String("template"))
			log.PanicIf(err)

			defer tf.Close()

			ter := exfat.NewExfatReader(tf)

			err = ter.Parse()
			log.PanicIf(err)

			ex, err := exfat.Build(exfat.BuildOptions{
				Template:          ter.ActiveBootRegion(),
				SourcePath:        sourcePath,
				SectorSize:        uint32(c.Uint64("sector-size")),
				SectorsPerCluster: uint32(c.Uint64("sectors-per-cluster")),
				NumberOfFats:      uint8(c.Uint("number-of-fats")),
				HasVolumeGuid:     c.Bool("with-volume-guid"),
				VolumeSerial:      uint32(time.Now().Unix()),
			})
			log.PanicIf(err)

			data := ex.Bytes()

			g, err := os.Create(outputPath)
			log.PanicIf(err)

			defer g.Close()

			_, err = g.Write(data)
			log.PanicIf(err)

			fmt.Printf("Wrote volume: %s bytes\n", humanize.Comma(int64(len(data))))

			return nil
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "decode and summarize an exFAT volume image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filepath", Required: true},
		},
		Action: func(c *cli.Context) (err error) {
			defer func() {
				if state := recover(); state != nil {
					err = log.Wrap(state.(error))
				}
			}()

			f, err := os.Open(c.String("filepath"))
			log.PanicIf(err)

			defer f.Close()

			ex, err := exfat.ParseExfat(exfat.ParseExfatOptions{ReadSeeker: f})
			log.PanicIf(err)

			fmt.Printf("Cluster count: %s\n", humanize.Comma(int64(ex.BootSector.ClusterCount)))
			fmt.Printf("Root first cluster: %d\n", ex.BootSector.FirstClusterOfRootDirectory)

			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list the contents of an exFAT volume image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filepath", Required: true},
		},
		Action: func(c *cli.Context) (err error) {
			defer func() {
				if state := recover(); state != nil {
					err = log.Wrap(state.(error))
				}
			}()

			f, err := os.Open(c.String("filepath"))
			log.PanicIf(err)

			defer f.Close()

			er := exfat.NewExfatReader(f)

			err = er.Parse()
			log.PanicIf(err)

			tree := exfat.NewTree(er)

			err = tree.Load()
			log.PanicIf(err)

			files, nodes, err := tree.List()
			log.PanicIf(err)

			for _, filepath := range files {
				node := nodes[filepath]
				sde := node.StreamDirectoryEntry()

				fmt.Printf("%15s %s\n", humanize.Comma(int64(sde.ValidDataLength)), filepath)
			}

			return nil
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "extract one file from an exFAT volume image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filepath", Required: true},
			&cli.StringFlag{Name: "extract-path", Required: true},
			&cli.StringFlag{Name: "output", Required: true},
		},
		Action: func(c *cli.Context) (err error) {
			defer func() {
				if state := recover(); state != nil {
					err = log.Wrap(state.(error))
				}
			}()

			f, err := os.Open(c.String("filepath"))
			log.PanicIf(err)

			defer f.Close()

			er := exfat.NewExfatReader(f)

			err = er.Parse()
			log.PanicIf(err)

			tree := exfat.NewTree(er)

			err = tree.Load()
			log.PanicIf(err)

			_, nodes, err := tree.List()
			log.PanicIf(err)

			node, found := nodes[c.String("extract-path")]
			if !found {
				return exfat.NewKindedError(exfat.ErrorKindInvalidArguments, "path not found in image", nil)
			}

			g, err := os.Create(c.String("output"))
			log.PanicIf(err)

			defer g.Close()

			sde := node.StreamDirectoryEntry()
			useFat := !sde.GeneralSecondaryFlags.NoFatChain()

			_, _, err = er.WriteFromClusterChain(sde.FirstCluster, sde.ValidDataLength, useFat, g)
			log.PanicIf(err)

			fmt.Printf("%s bytes written.\n", humanize.Comma(int64(sde.ValidDataLength)))

			return nil
		},
	}
}
