// Package framesource reads an MOTChallenge-style numbered image
// sequence directory as a channel of grayscale frames, adapting the
// teacher's video.go VideoFromFrames (seqinfo.ini metadata + progress
// bar) from color frames read for a detection/tracking demo to the
// 8-bit grayscale frames spec.md §3/§6 names as this core's image type.
package framesource

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"gocv.io/x/gocv"
	"golang.org/x/term"
	"gopkg.in/ini.v1"
)

// Sequence is a directory of numbered grayscale image frames plus the
// metadata describing how many there are and where to find them.
type Sequence struct {
	inputPath string
	imDir     string
	imExt     string

	Name   string
	Length int
	FPS    int
	Width  int
	Height int
}

// Open reads inputPath/seqinfo.ini and returns a Sequence ready to be
// iterated with Frames.
func Open(inputPath string) (*Sequence, error) {
	iniPath := filepath.Join(inputPath, "seqinfo.ini")
	file, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("framesource: failed to load %s: %w", iniPath, err)
	}

	section := file.Section("Sequence")
	s := &Sequence{
		inputPath: inputPath,
		imDir:     section.Key("imDir").MustString("img1"),
		imExt:     section.Key("imExt").MustString(".jpg"),
		Name:      section.Key("name").MustString(filepath.Base(inputPath)),
		Length:    section.Key("seqLength").MustInt(0),
		FPS:       section.Key("frameRate").MustInt(30),
		Width:     section.Key("imWidth").MustInt(0),
		Height:    section.Key("imHeight").MustInt(0),
	}

	if s.Length == 0 || s.Width == 0 || s.Height == 0 {
		return nil, fmt.Errorf("framesource: invalid seqinfo.ini in %s: missing required fields", inputPath)
	}

	return s, nil
}

// Frame is one frame of the sequence: its 1-indexed frame number and
// grayscale image content.
type Frame struct {
	Number int
	Image  gocv.Mat
}

// Frames returns a channel yielding the sequence's frames in order,
// read as CV_8UC1 grayscale, with a progress bar tracking the read
// rate. The channel closes when the sequence is exhausted; every
// yielded Frame.Image must be Close()'d by the receiver.
func (s *Sequence) Frames() <-chan Frame {
	frames := make(chan Frame)

	go func() {
		defer close(frames)

		bar := progressbar.NewOptions(s.Length,
			progressbar.OptionSetDescription(s.progressDescription()),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("fps"),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)

		for i := 1; i <= s.Length; i++ {
			path := filepath.Join(s.inputPath, s.imDir, fmt.Sprintf("%06d%s", i, s.imExt))
			img := gocv.IMRead(path, gocv.IMReadGrayScale)
			if img.Empty() {
				img.Close()
				continue
			}
			bar.Add(1)
			frames <- Frame{Number: i, Image: img}
		}
	}()

	return frames
}

// progressDescription abbreviates the sequence name to fit the terminal
// width, mirroring video.go's getProgressDescription.
func (s *Sequence) progressDescription() string {
	desc := s.Name
	cols, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		cols = 80
	}
	maxLen := cols - 25
	if len(desc) > maxLen && maxLen > 10 {
		desc = desc[:maxLen-3] + "..."
	}
	return desc
}
