// Package util - filesystem helpers for assembling frame stacks from
// microscopy exports.
package util

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"github.com/smlm-ai/go-smlm/frames"
)

// frameFile pairs an image path with the frame number parsed from its name.
type frameFile struct {
	path   string
	number int
}

// LoadStack reads every numbered frame image in a directory into one stack.
//
// Files are ordered by the number embedded in their name, so "frame-10.tif"
// follows "frame-9.tif" regardless of lexical order; the sorted position
// becomes the frame index. TIFF is decoded at full 16-bit depth, PNG through
// the standard decoder. Directories and files of other types are skipped.
//
// Arguments:
//   - dir: Directory containing the frame files.
//
// Returns:
//   - *frames.Stack: The assembled stack.
//   - error: A read, name-parse, or decode failure with the file attached;
//     an error when the directory holds no frame files or the frames
//     disagree in size.
func LoadStack(dir string) (*frames.Stack, error) {
	return LoadStackMatching(dir, "")
}

// LoadStackMatching behaves like LoadStack but admits only frame files whose
// base name matches the glob pattern. An empty pattern admits every
// supported file.
//
// Arguments:
//   - dir: Directory containing the frame files.
//   - pattern: Glob pattern in filepath.Match syntax, e.g. "frame-*.tif".
//
// Returns:
//   - *frames.Stack: The assembled stack.
//   - error: A bad pattern, or any LoadStack failure.
func LoadStackMatching(dir, pattern string) (*frames.Stack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading frame directory %s", dir)
	}

	files := make([]frameFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pattern != "" {
			ok, err := filepath.Match(pattern, entry.Name())
			if err != nil {
				return nil, errors.Wrapf(err, "matching pattern %q", pattern)
			}
			if !ok {
				continue
			}
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		switch ext {
		case ".tif", ".tiff", ".png":
		default:
			continue
		}
		number, err := frameNumber(entry.Name(), ext)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing frame number of %s", entry.Name())
		}
		files = append(files, frameFile{path: filepath.Join(dir, entry.Name()), number: number})
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no frame files (.tif, .tiff, .png) in %s", dir)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].number < files[j].number })

	planes := make([]frames.Frame, len(files))
	for i, file := range files {
		img, err := decodeFrame(file.path)
		if err != nil {
			return nil, err
		}
		planes[i] = frames.FromImage(img, i)
	}
	return frames.StackFromFrames(planes)
}

// frameNumber extracts the trailing integer of a file name, the convention
// of exported stacks ("frame-17.tif", "img_0005.png").
func frameNumber(name, ext string) (int, error) {
	stem := strings.TrimSuffix(name, ext)
	end := len(stem)
	start := end
	for start > 0 && stem[start-1] >= '0' && stem[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, errors.Errorf("no trailing number in %q", stem)
	}
	return strconv.Atoi(stem[start:end])
}

// decodeFrame decodes one frame image by its extension.
func decodeFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening frame %s", path)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		img, err = tiff.Decode(f)
	case ".png":
		img, err = png.Decode(f)
	default:
		return nil, errors.Errorf("unsupported frame format %s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding frame %s", path)
	}
	return img, nil
}
