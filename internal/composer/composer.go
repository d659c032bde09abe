// Package composer turns up to three uploaded images into the final HTML
// email document.
package composer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/shineum/slicemail/internal/email"
	"github.com/shineum/slicemail/internal/fragment"
	"github.com/shineum/slicemail/internal/uploader"
)

// Request is one generation request.
type Request struct {
	Images   []email.Image
	BodyLink string
}

// Result is the outcome of a successful generation.
type Result struct {
	HTML string

	// Images holds the optimized public URL of every present slot.
	Images map[email.Slot]email.RemoteImage
}

// Composer uploads images and builds the document referencing them.
type Composer struct {
	uploader uploader.Uploader
}

// New creates a Composer that uploads through u.
func New(u uploader.Uploader) *Composer {
	return &Composer{uploader: u}
}

// Generate validates the request, uploads every image in parallel and builds
// the document. It is all-or-nothing: if any upload fails the first failure is
// returned and no document is produced.
func (c *Composer) Generate(ctx context.Context, req Request) (*Result, error) {
	images, err := validate(req.Images)
	if err != nil {
		return nil, err
	}

	if _, ok := images[email.SlotBody]; !ok {
		slog.Warn("generating without a body image", "slots", len(images))
	}

	slog.Info("uploading images",
		"provider", c.uploader.Name(),
		"count", len(images),
	)

	// Each goroutine writes only its own slot.
	var (
		g       errgroup.Group
		results [3]email.RemoteImage
	)
	for i, slot := range email.Slots() {
		img, ok := images[slot]
		if !ok {
			continue
		}
		g.Go(func() error {
			remote, err := c.uploader.Upload(ctx, img)
			if err != nil {
				slog.Error("upload failed", "slot", slot, "error", err)
				return err
			}
			results[i] = remote
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	opt, _ := c.uploader.(uploader.Optimizer)

	res := &Result{Images: make(map[email.Slot]email.RemoteImage, len(images))}
	urls := make(map[email.Slot]string, len(images))
	for i, slot := range email.Slots() {
		if _, ok := images[slot]; !ok {
			continue
		}
		remote := results[i]
		remote.Slot = slot
		if opt != nil {
			remote.URL = opt.Optimize(remote.URL)
		}
		res.Images[slot] = remote
		urls[slot] = remote.URL
	}

	res.HTML = fragment.Build(
		urls[email.SlotHeader],
		urls[email.SlotBody],
		urls[email.SlotFooter],
		strings.TrimSpace(req.BodyLink),
	)

	slog.Info("email generated", "slots", len(images), "bytes", len(res.HTML))

	return res, nil
}

// validate indexes the images by slot and rejects anything that should not
// reach the network.
func validate(images []email.Image) (map[email.Slot]email.Image, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	bySlot := make(map[email.Slot]email.Image, len(images))
	for _, img := range images {
		if _, err := email.ParseSlot(string(img.Slot)); err != nil {
			return nil, inputErrorf("%v", err)
		}
		if _, dup := bySlot[img.Slot]; dup {
			return nil, inputErrorf("more than one %s image", img.Slot)
		}
		if len(img.Data) == 0 {
			return nil, inputErrorf("%s image is empty", img.Slot)
		}
		if mtype := mimetype.Detect(img.Data); !strings.HasPrefix(mtype.String(), "image/") {
			return nil, inputErrorf("%s file is %s, not an image", img.Slot, mtype.String())
		}
		bySlot[img.Slot] = img
	}

	return bySlot, nil
}
