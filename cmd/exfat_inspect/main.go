package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/theos-project/exfat-imager"
)

var dumpConfig bool

type bootGeometry struct {
	SectorSize        uint32 `yaml:"sector_size"`
	SectorsPerCluster uint32 `yaml:"sectors_per_cluster"`
	NumberOfFats      uint8  `yaml:"number_of_fats"`
	ClusterCount      uint32 `yaml:"cluster_count"`
	FatOffset         uint32 `yaml:"fat_offset"`
	FatLength         uint32 `yaml:"fat_length"`
	ClusterHeapOffset uint32 `yaml:"cluster_heap_offset"`
	RootFirstCluster  uint32 `yaml:"root_first_cluster"`
	PercentInUse      uint8  `yaml:"percent_in_use"`
}

func main() {
	root := &cobra.Command{
		Use:   "exfat_inspect",
		Short: "read-only inspection of exFAT volume images",
	}

	root.AddCommand(bootCommand())
	root.AddCommand(treeCommand())
	root.AddCommand(extractCommand())

	if err := root.Execute(); err != nil {
		log.PrintError(log.Wrap(err))
		os.Exit(1)
	}
}

func openReader(filepath string) (*os.File, *exfat.ExfatReader) {
	f, err := os.Open(filepath)
	log.PanicIf(err)

	er := exfat.NewExfatReader(f)

	err = er.Parse()
	log.PanicIf(err)

	return f, er
}

func bootCommand() *cobra.Command {
	var filepath string

	cmd := &cobra.Command{
		Use:   "boot",
		Short: "print boot-sector geometry",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if state := recover(); state != nil {
					err = log.Wrap(state.(error))
				}
			}()

			f, er := openReader(filepath)
			defer f.Close()

			bsh := er.ActiveBootRegion()

			geometry := bootGeometry{
				SectorSize:        bsh.SectorSize(),
				SectorsPerCluster: bsh.SectorsPerCluster(),
				NumberOfFats:      bsh.NumberOfFats,
				ClusterCount:      bsh.ClusterCount,
				FatOffset:         bsh.FatOffset,
				FatLength:         bsh.FatLength,
				ClusterHeapOffset: bsh.ClusterHeapOffset,
				RootFirstCluster:  bsh.FirstClusterOfRootDirectory,
				PercentInUse:      bsh.PercentInUse,
			}

			if dumpConfig {
				out, err := yaml.Marshal(geometry)
				log.PanicIf(err)

				fmt.Print(string(out))

				return nil
			}

			bsh.Dump()

			return nil
		},
	}

	cmd.Flags().StringVarP(&filepath, "filepath", "f", "", "File-path of exFAT volume image")
	cmd.MarkFlagRequired("filepath")
	cmd.Flags().BoolVar(&dumpConfig, "dump-config", false, "Emit geometry as YAML instead of a text dump")

	return cmd
}

func treeCommand() *cobra.Command {
	var filepath string

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "list the contents of an exFAT volume image",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if state := recover(); state != nil {
					err = log.Wrap(state.(error))
				}
			}()

			f, er := openReader(filepath)
			defer f.Close()

			tree := exfat.NewTree(er)

			err = tree.Load()
			log.PanicIf(err)

			files, nodes, err := tree.List()
			log.PanicIf(err)

			for _, path := range files {
				sde := nodes[path].StreamDirectoryEntry()
				fmt.Printf("%15s %s\n", humanize.Comma(int64(sde.ValidDataLength)), path)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&filepath, "filepath", "f", "", "File-path of exFAT volume image")
	cmd.MarkFlagRequired("filepath")

	return cmd
}

func extractCommand() *cobra.Command {
	var filepath, extractPath, output string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "extract one file from an exFAT volume image",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if state := recover(); state != nil {
					err = log.Wrap(state.(error))
				}
			}()

			f, er := openReader(filepath)
			defer f.Close()

			tree := exfat.NewTree(er)

			err = tree.Load()
			log.PanicIf(err)

			_, nodes, err := tree.List()
			log.PanicIf(err)

			node, found := nodes[extractPath]
			if !found {
				return exfat.NewKindedError(exfat.ErrorKindInvalidArguments, "path not found in image", nil)
			}

			g, err := os.Create(output)
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

	cmd.Flags().StringVarP(&filepath, "filepath", "f", "", "File-path of exFAT volume image")
	cmd.Flags().StringVarP(&extractPath, "extract-path", "e", "", "File-path to extract (use backslashes between path components)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "File-path to write to")
	cmd.MarkFlagRequired("filepath")
	cmd.MarkFlagRequired("extract-path")
	cmd.MarkFlagRequired("output")

	return cmd
}
