package signal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the wav audio format code for linear PCM.
const wavFormatPCM = 1

var (
	// ErrInvalidWav is returned when decoded data is not a valid wav.
	ErrInvalidWav = errors.New("wav is not valid")
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 8, 16 and 32 bit depth is supported")
)

// Encode writes waveform as 16 bit mono wav.
func Encode(ws io.WriteSeeker, w *Waveform) error {
	e := wav.NewEncoder(ws, w.SampleRate, int(BitDepth16), 1, wavFormatPCM)
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  w.SampleRate,
		},
		SourceBitDepth: int(BitDepth16),
		Data:           w.AsInt(BitDepth16),
	}
	if err := e.Write(ib); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := e.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WriteFile creates a wav file at path.
func WriteFile(path string, w *Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, w); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Bytes returns waveform encoded as wav.
func Bytes(w *Waveform) ([]byte, error) {
	var sb seekBuffer
	if err := Encode(&sb, w); err != nil {
		return nil, err
	}
	return sb.buf, nil
}

// Decode reads wav data. Multichannel wavs are reduced to their first
// channel.
func Decode(rs io.ReadSeeker) (*Waveform, error) {
	d := wav.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, ErrInvalidWav
	}
	bitDepth := BitDepth(d.BitDepth)
	if bitDepth != BitDepth8 && bitDepth != BitDepth16 && bitDepth != BitDepth32 {
		return nil, ErrUnsupportedBitDepth
	}
	ib, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	numChannels := int(d.NumChans)
	if numChannels < 1 {
		return nil, ErrInvalidWav
	}
	ints := make([]int, 0, len(ib.Data)/numChannels)
	for i := 0; i < len(ib.Data); i += numChannels {
		ints = append(ints, ib.Data[i])
	}
	return FromInt(ints, bitDepth, int(d.SampleRate)), nil
}

// ReadFile decodes wav file at path.
func ReadFile(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// DecodeStream decodes a waveform byte stream. Wav data is detected by its
// RIFF header, anything else is treated as raw 16 bit little-endian mono
// PCM at provided sample rate.
func DecodeStream(data []byte, sampleRate int) (*Waveform, error) {
	if bytes.HasPrefix(data, []byte("RIFF")) {
		return Decode(bytes.NewReader(data))
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("raw pcm stream has odd length %d", len(data))
	}
	ints := make([]int, len(data)/2)
	for i := range ints {
		ints[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return FromInt(ints, BitDepth16, sampleRate), nil
}

// seekBuffer is an in-memory io.WriteSeeker required by wav encoder.
type seekBuffer struct {
	buf []byte
	pos int
}

func (sb *seekBuffer) Write(p []byte) (int, error) {
	if end := sb.pos + len(p); end > len(sb.buf) {
		if end > cap(sb.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, sb.buf)
			sb.buf = grown
		} else {
			sb.buf = sb.buf[:end]
		}
	}
	n := copy(sb.buf[sb.pos:], p)
	sb.pos += n
	return n, nil
}

func (sb *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(sb.pos) + offset
	case io.SeekEnd:
		pos = int64(len(sb.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, errors.New("negative position")
	}
	sb.pos = int(pos)
	return pos, nil
}
