package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gen2brain/pcmout"
	"github.com/gen2brain/pcmout/alsa"
	"github.com/gen2brain/pcmout/dart"
	"github.com/gen2brain/pcmout/dossb"
	_ "github.com/gen2brain/pcmout/wave"
)

func main() {
	var (
		open bool
		rate uint
	)

	flag.BoolVar(&open, "open", false, "Open and close every driver to show the negotiated rate")
	flag.UintVar(&rate, "rate", 44100, "The sample rate to request with -open")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Lists the available output drivers and their devices.")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	fmt.Println("Drivers:")
	for _, d := range pcmout.Drivers() {
		fmt.Printf("  %-6s %s\n", d.Name, d.Description)
	}

	fmt.Println("\nALSA cards:")
	cards, err := alsa.Cards()
	if err != nil {
		fmt.Printf("  none (%v)\n", err)
	}

	for _, c := range cards {
		fmt.Print(c)
	}

	fmt.Println("\nDART mixer services:")
	defService := dart.DefaultService()
	for _, name := range dart.Services() {
		def := ""
		if name == defService {
			def = " (default)"
		}

		fmt.Printf("  %s%s\n", name, def)
	}

	fmt.Println("\nSound Blaster models:")
	for _, m := range dossb.Models() {
		fmt.Printf("  %-6s %-18s mono %dHz, stereo %s\n", m.Name, m.Description, m.MaxRateMono, stereoRate(m))
	}

	if !open {
		return
	}

	fmt.Println("\nProbe:")
	for _, d := range pcmout.Drivers() {
		// The wave driver would leave a file behind.
		if d.Name == "wave" {
			continue
		}

		cfg := pcmout.DefaultConfig()
		cfg.Driver = d.Name
		cfg.Rate = uint32(rate)
		cfg.Logger = pcmout.Discard

		stream, err := pcmout.Open(cfg)
		if err != nil {
			fmt.Printf("  %-6s unavailable: %v\n", d.Name, err)

			continue
		}

		fmt.Printf("  %-6s %dHz\n", d.Name, stream.Rate())

		if err := stream.Close(); err != nil {
			fmt.Printf("  %-6s close failed: %v\n", d.Name, err)
		}
	}
}

func stereoRate(m dossb.Model) string {
	if !m.Caps.Has(dossb.CapsStereo) {
		return "unsupported"
	}

	return fmt.Sprintf("%dHz", m.MaxRateStereo)
}
