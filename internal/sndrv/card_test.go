package sndrv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCards = ` 0 [PCH            ]: HDA-Intel - HDA Intel PCH
                      HDA Intel PCH at 0xf7f10000 irq 33
 2 [Loopback       ]: Loopback - Loopback
                      Loopback 1
 1 [Mic            ]: USB-Audio - USB Microphone
                      USB Microphone at usb-0000:00:14.0-2
`
	testPcm = `00-00: ALC892 Analog : ALC892 Analog : playback 1 : capture 1
00-03: HDMI 0 : HDMI 0 : playback 1
01-00: USB Audio : USB Audio : capture 1
02-00: Loopback PCM : Loopback PCM : playback 8 : capture 8
03-00: Orphan : Orphan : playback 1
`
)

func TestParseCards(t *testing.T) {
	cards := parseCards(testCards, testPcm)
	require.Len(t, cards, 3)

	assert.Equal(t, 0, cards[0].ID)
	assert.Equal(t, "PCH", cards[0].Name)
	assert.Equal(t, "HDA-Intel - HDA Intel PCH", cards[0].Description)
	require.Len(t, cards[0].Devices, 3)
	assert.Equal(t, "pcm0p", cards[0].Devices[0].Name)
	assert.True(t, cards[0].Devices[0].IsPlayback)
	assert.Equal(t, "pcm0c", cards[0].Devices[1].Name)
	assert.False(t, cards[0].Devices[1].IsPlayback)
	assert.Equal(t, 3, cards[0].Devices[2].ID)

	assert.Equal(t, 1, cards[1].ID)
	assert.Equal(t, "", cards[1].PlaybackName(), "capture only card")

	assert.Equal(t, "Loopback", cards[2].Name)
	assert.Equal(t, "hw:2,0", cards[2].PlaybackName())

	assert.Contains(t, cards[0].String(), "Card 0: PCH")
	assert.Contains(t, cards[0].String(), "[Playback]")
}

func TestParseName(t *testing.T) {
	testCases := []struct {
		name   string
		card   uint
		device uint
		err    bool
	}{
		{name: "hw:0,0", card: 0, device: 0},
		{name: "hw:2,3", card: 2, device: 3},
		{name: "hw:1", card: 1, device: 0},
		{name: "plughw:1,1", err: true},
		{name: "default", err: true},
		{name: "hw:a,0", err: true},
		{name: "hw:0,b", err: true},
		{name: "hw:0,0,0", err: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			card, device, err := ParseName(tc.name)
			if tc.err {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.card, card)
			assert.Equal(t, tc.device, device)
		})
	}
}

func TestParseNamePlugin(t *testing.T) {
	_, _, err := ParseName("plughw:1,0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use 'hw:1,0'")
}

func TestResolveName(t *testing.T) {
	cards := parseCards(testCards, testPcm)

	card, device, err := ResolveName("", cards)
	require.NoError(t, err)
	assert.Equal(t, uint(0), card)
	assert.Equal(t, uint(0), device)

	card, device, err = ResolveName("default", cards[1:])
	require.NoError(t, err)
	assert.Equal(t, uint(2), card)
	assert.Equal(t, uint(0), device)

	card, _, err = ResolveName("hw:5,0", nil)
	require.NoError(t, err)
	assert.Equal(t, uint(5), card)

	_, _, err = ResolveName("", cards[1:2])
	assert.ErrorIs(t, err, ErrNoPlayback)
}
