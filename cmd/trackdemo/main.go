// Command trackdemo drives the planar template-tracking core end to
// end over an MOTChallenge-style numbered image sequence: it runs the
// fiducial detector periodically, hands candidate quads to the session
// layer, and prints each live marker's ID, type, confidence and quad
// centroid every frame. Adapted
// from the teacher's examples/simple harness and video.go's
// VideoFromFrames loop, generalized from drawing detection boxes over a
// video to reporting tracked marker state over an image sequence.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/config"
	"github.com/anki-vision/planartrack/dtree"
	"github.com/anki-vision/planartrack/fiducial"
	"github.com/anki-vision/planartrack/framesource"
	"github.com/anki-vision/planartrack/lkpyramid"
	"github.com/anki-vision/planartrack/sampledtracker"
	"github.com/anki-vision/planartrack/session"
	"github.com/anki-vision/planartrack/transform"
)

func main() {
	seqDir := flag.String("seq", "", "path to an MOTChallenge-style image sequence directory (must contain seqinfo.ini)")
	configPath := flag.String("config", "", "optional ini file overriding the tuning defaults (see config.Load)")
	treeNodesPath := flag.String("tree", "", "path to a raw little-endian decision-tree node buffer (dtree.DecodeNodes)")
	probeXPath := flag.String("probeX", "", "path to the decision tree's raw little-endian probeX offset buffer")
	probeYPath := flag.String("probeY", "", "path to the decision tree's raw little-endian probeY offset buffer")
	fractionalBits := flag.Int("fractionalBits", 0, "decision tree probe-coordinate fixed-point fractional bit count")
	maxDepth := flag.Int("maxDepth", 16, "decision tree maximum depth")
	detectEveryN := flag.Int("detectEvery", 15, "run the fiducial detector every N frames")
	arenaBytes := flag.Int("arenaBytes", 1<<24, "scratch arena capacity in bytes")
	flag.Parse()

	if *seqDir == "" || *treeNodesPath == "" || *probeXPath == "" || *probeYPath == "" {
		fmt.Fprintln(os.Stderr, "usage: trackdemo -seq <dir> -tree <nodes> -probeX <offsets> -probeY <offsets> [-config ini]")
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("trackdemo: %v", err)
		}
	}

	decoder, err := loadDecoder(*treeNodesPath, *probeXPath, *probeYPath, *fractionalBits, *maxDepth)
	if err != nil {
		log.Fatalf("trackdemo: %v", err)
	}

	seq, err := framesource.Open(*seqDir)
	if err != nil {
		log.Fatalf("trackdemo: %v", err)
	}

	a := arena.New(arena.OffChip, *arenaBytes)
	sess := session.New(a, cfg.Session, trackerConstructor(cfg))

	frameNumber := 0
	for frame := range seq.Frames() {
		frameNumber = frame.Number

		var detections []fiducial.Detection
		if (frameNumber-1)%*detectEveryN == 0 || len(sess.Markers()) == 0 {
			detections, err = decoder.Detect(a, frame.Image, cfg.Fiducial)
			if err != nil {
				log.Printf("trackdemo: frame %d: detect failed: %v", frameNumber, err)
			}
		}

		if err := sess.Update(frame.Image, detections); err != nil {
			log.Printf("trackdemo: frame %d: session update failed: %v", frameNumber, err)
		}

		report(frameNumber, sess)
		frame.Image.Close()
	}
}

func loadDecoder(nodesPath, probeXPath, probeYPath string, fractionalBits, maxDepth int) (fiducial.Decoder, error) {
	nodeData, err := os.ReadFile(nodesPath)
	if err != nil {
		return fiducial.Decoder{}, fmt.Errorf("reading tree nodes: %w", err)
	}
	nodes, err := dtree.DecodeNodes(nodeData)
	if err != nil {
		return fiducial.Decoder{}, err
	}

	xData, err := os.ReadFile(probeXPath)
	if err != nil {
		return fiducial.Decoder{}, fmt.Errorf("reading probeX offsets: %w", err)
	}
	probeX, err := dtree.DecodeOffsets(xData)
	if err != nil {
		return fiducial.Decoder{}, err
	}

	yData, err := os.ReadFile(probeYPath)
	if err != nil {
		return fiducial.Decoder{}, fmt.Errorf("reading probeY offsets: %w", err)
	}
	probeY, err := dtree.DecodeOffsets(yData)
	if err != nil {
		return fiducial.Decoder{}, err
	}

	tree, err := dtree.New(nodes, probeX, probeY, fractionalBits, maxDepth)
	if err != nil {
		return fiducial.Decoder{}, err
	}
	return fiducial.Decoder{Tree: tree}, nil
}

// trackerConstructor selects which of §4.3–§4.5's trackers backs every
// marker the session spawns, per cfg.Variant.
func trackerConstructor(cfg config.Config) session.TrackerConstructor {
	switch cfg.Variant {
	case config.LKPyramidVariant:
		return session.NewLKPyramidTracker(transform.Projective, cfg.LKPyramid, cfg.LKPyramidVerify)
	case config.SampledVariant:
		return session.NewSampledTracker(transform.Projective, cfg.Sampled, cfg.SampledVerify)
	default:
		return session.NewEdgeTracker(cfg.EdgeInit, cfg.EdgeUpdate)
	}
}

func report(frameNumber int, sess *session.Session) {
	for _, m := range sess.Markers() {
		id := "init"
		if stableID := m.ID(); stableID != nil {
			id = fmt.Sprintf("%d", *stableID)
		}
		c := m.LastQuad().Centroid()
		fmt.Printf("frame %d: marker %s type=%d confidence=%.2f centroid=(%.1f,%.1f)\n",
			frameNumber, id, m.MarkerType, m.Confidence(), c.X, c.Y)
	}
}
