package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/gen2brain/pcmout"
	_ "github.com/gen2brain/pcmout/alsa"
	_ "github.com/gen2brain/pcmout/dart"
	_ "github.com/gen2brain/pcmout/dossb"
	_ "github.com/gen2brain/pcmout/wave"
)

// chunkFrames is the number of frames rendered per Write.
const chunkFrames = 1024

func main() {
	var (
		driver   string
		device   string
		rate     uint
		timeout  time.Duration
		envFile  string
		tone     float64
		length   time.Duration
		volume   float64
		pauseAt  time.Duration
		pauseFor time.Duration
	)

	flag.StringVar(&driver, "driver", "", "The output driver (empty = first available)")
	flag.StringVar(&device, "device", "", "The driver specific device name")
	flag.UintVar(&rate, "rate", 0, "The requested sample rate (0 = PCMOUT_RATE or 44100)")
	flag.DurationVar(&timeout, "timeout", 0, "The write timeout (0 = PCMOUT_WRITE_TIMEOUT or 5s)")
	flag.StringVar(&envFile, "env", "", "A dotenv file with PCMOUT_* settings")
	flag.Float64Var(&tone, "tone", 0, "Play a sine tone of this frequency instead of a file")
	flag.DurationVar(&length, "length", 3*time.Second, "The tone length")
	flag.Float64Var(&volume, "volume", 0, "Volume adjustment in log2 steps (-1 = half)")
	flag.DurationVar(&pauseAt, "pause-at", 0, "Pause the output after this much audio (0 = never)")
	flag.DurationVar(&pauseFor, "pause-for", time.Second, "How long to stay paused")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [wav|mp3|ogg file]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if (tone <= 0) == (flag.NArg() != 1) {
		flag.Usage()
		os.Exit(1)
	}

	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}

	cfg, err := pcmout.LoadConfig(files...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if driver != "" {
		cfg.Driver = driver
	}

	if device != "" {
		cfg.Device = device
	}

	if rate > 0 {
		cfg.Rate = uint32(rate)
	}

	if timeout > 0 {
		cfg.WriteTimeout = timeout
	}

	stream, err := pcmout.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening output: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	outRate := beep.SampleRate(stream.Rate())

	var src beep.Streamer
	if tone > 0 {
		fmt.Printf("Playing %.1f Hz tone for %v\n", tone, length)
		src = toneSource(outRate, tone, length, volume)
	} else {
		path := flag.Arg(0)

		file, closer, err := openSource(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", path, err)
			os.Exit(1)
		}
		defer closer.Close()

		fmt.Printf("Playing file: %s\n", path)
		fmt.Printf("Source: %d channels, %d Hz, %v\n", file.NumChans(), file.SampleRate(), file.Duration().Round(time.Millisecond))

		src = file
		if file.SampleRate() != outRate {
			fmt.Printf("Resampling %d Hz to %d Hz\n", file.SampleRate(), outRate)
			src = beep.Resample(4, file.SampleRate(), outRate, file)
		}

		if volume != 0 {
			src = &effects.Volume{Streamer: src, Base: 2, Volume: volume}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Output: %d Hz\n", outRate)
	fmt.Println("Starting playback...")
	startTime := time.Now()

	frames, err := play(ctx, stream, src, outRate.N(pauseAt), pauseFor)

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("\nInterrupted.")
	case err != nil:
		fmt.Fprintf(os.Stderr, "\nError during playback: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Playback finished. %d frames in %v\n", frames, time.Since(startTime).Round(time.Millisecond))
}

// play renders src into S16 stereo chunks and writes them to stream until src ends.
// When pauseAt is positive the stream is paused once after that many frames.
func play(ctx context.Context, stream pcmout.Stream, src beep.Streamer, pauseAt int, pauseFor time.Duration) (int, error) {
	samples := make([][2]float64, chunkFrames)
	buf := make([]byte, chunkFrames*pcmout.FrameSize)
	total := 0

	for {
		n, ok := src.Stream(samples)
		if n > 0 {
			if err := stream.Write(ctx, encode(buf, samples[:n])); err != nil {
				return total, err
			}

			total += n
		}

		if !ok {
			return total, src.Err()
		}

		if pauseAt > 0 && total >= pauseAt {
			pauseAt = 0

			if err := pauseOutput(ctx, stream, pauseFor); err != nil {
				return total, err
			}
		}
	}
}

func pauseOutput(ctx context.Context, stream pcmout.Stream, d time.Duration) error {
	fmt.Printf("Pausing for %v\n", d)

	if err := stream.Pause(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
	}

	return stream.Resume()
}

// encode converts samples to native-endian interleaved S16 and returns the filled part of buf.
func encode(buf []byte, samples [][2]float64) []byte {
	for i, s := range samples {
		binary.NativeEndian.PutUint16(buf[i*4:], uint16(toInt16(s[0])))
		binary.NativeEndian.PutUint16(buf[i*4+2:], uint16(toInt16(s[1])))
	}

	return buf[:len(samples)*pcmout.FrameSize]
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))

	return int16(math.Round(v * 32767))
}
