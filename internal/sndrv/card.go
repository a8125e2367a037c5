package sndrv

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrNoPlayback is returned when no card exposes a playback device.
var ErrNoPlayback = errors.New("no playback device found")

// SoundCardDevice represents a single PCM device on a sound card.
type SoundCardDevice struct {
	ID          int
	Name        string
	Description string
	IsPlayback  bool // True for playback, false for capture
}

// String returns a human-readable representation of the SoundCardDevice.
func (d SoundCardDevice) String() string {
	direction := "Capture"
	if d.IsPlayback {
		direction = "Playback"
	}

	return fmt.Sprintf("  Device %d: %s (%s) [%s]", d.ID, d.Name, d.Description, direction)
}

// SoundCard represents an enumerated sound card with its devices.
type SoundCard struct {
	ID          int
	Name        string
	Description string
	Devices     []SoundCardDevice
}

// String returns a human-readable representation of the SoundCard.
func (c SoundCard) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Card %d: %s (%s)\n", c.ID, c.Name, c.Description))
	for _, dev := range c.Devices {
		sb.WriteString(dev.String() + "\n")
	}

	return sb.String()
}

// PlaybackName returns the "hw:C,D" name of the first playback device on the card, or "".
func (c SoundCard) PlaybackName() string {
	for _, dev := range c.Devices {
		if dev.IsPlayback {
			return fmt.Sprintf("hw:%d,%d", c.ID, dev.ID)
		}
	}

	return ""
}

const (
	procCards = "/proc/asound/cards"
	procPcm   = "/proc/asound/pcm"
)

var (
	cardRegex = regexp.MustCompile(`^\s*(\d+)\s+\[\s*([^]]*?)\s*\]:\s*(.*)`)
	// Matches lines like "02-00: Loopback PCM : Loopback PCM : playback 8 : capture 8".
	pcmRegex = regexp.MustCompile(`^(\d+)-(\d+): (.*?) :.*`)
)

// EnumerateCards scans /proc/asound to find all available sound cards and their PCM devices.
func EnumerateCards() ([]SoundCard, error) {
	cards, err := os.ReadFile(procCards)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", procCards, err)
	}

	pcm, err := os.ReadFile(procPcm)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", procPcm, err)
	}

	return parseCards(string(cards), string(pcm)), nil
}

// parseCards builds the card list from the contents of /proc/asound/cards and /proc/asound/pcm.
func parseCards(cards, pcm string) []SoundCard {
	cardMap := make(map[int]*SoundCard)

	for _, line := range strings.Split(cards, "\n") {
		matches := cardRegex.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}

		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		cardMap[id] = &SoundCard{
			ID:          id,
			Name:        strings.TrimSpace(matches[2]),
			Description: strings.TrimSpace(matches[3]),
		}
	}

	for _, line := range strings.Split(pcm, "\n") {
		matches := pcmRegex.FindStringSubmatch(line)
		if len(matches) < 4 {
			continue
		}

		cardID, _ := strconv.Atoi(matches[1])
		devID, _ := strconv.Atoi(matches[2])

		card, ok := cardMap[cardID]
		if !ok {
			continue
		}

		description := strings.TrimSpace(matches[3])

		// A single PCM device can have both playback and capture streams.
		if strings.Contains(line, "playback") {
			card.Devices = append(card.Devices, SoundCardDevice{
				ID:          devID,
				Name:        fmt.Sprintf("pcm%dp", devID),
				Description: description,
				IsPlayback:  true,
			})
		}

		if strings.Contains(line, "capture") {
			card.Devices = append(card.Devices, SoundCardDevice{
				ID:          devID,
				Name:        fmt.Sprintf("pcm%dc", devID),
				Description: description,
			})
		}
	}

	ids := make([]int, 0, len(cardMap))
	for id := range cardMap {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	result := make([]SoundCard, 0, len(ids))
	for _, id := range ids {
		result = append(result, *cardMap[id])
	}

	return result
}

// ParseName parses a PCM name in the format "hw:C,D".
// A bare "hw:C" selects device 0. Plugin names such as "plughw:C,D" are
// rejected, there is no alsa-lib plugin layer to convert formats or rates.
func ParseName(name string) (card, device uint, err error) {
	if strings.HasPrefix(name, "plughw:") {
		return 0, 0, fmt.Errorf("invalid PCM name '%s': plugin devices are not supported, use 'hw:%s'", name, strings.TrimPrefix(name, "plughw:"))
	}

	rest, ok := strings.CutPrefix(name, "hw:")
	if !ok {
		return 0, 0, fmt.Errorf("invalid PCM name '%s': expected 'hw:card,device'", name)
	}

	parts := strings.Split(rest, ",")
	if len(parts) > 2 {
		return 0, 0, fmt.Errorf("invalid PCM name '%s': expected 'hw:card,device'", name)
	}

	c, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid card number '%s': %w", parts[0], err)
	}

	var d uint64
	if len(parts) == 2 {
		d, err = strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid device number '%s': %w", parts[1], err)
		}
	}

	return uint(c), uint(d), nil
}

// ResolveName maps a device name to a card and device number.
// An empty name or "default" picks the first playback device among cards.
func ResolveName(name string, cards []SoundCard) (card, device uint, err error) {
	if name != "" && name != "default" {
		return ParseName(name)
	}

	for _, c := range cards {
		if n := c.PlaybackName(); n != "" {
			return ParseName(n)
		}
	}

	return 0, 0, ErrNoPlayback
}
