package imaging

import (
	"context"
	"fmt"
)

// ImageReference describes one image requested for a slide. Immutable once
// received, consumed once per deck build, never persisted.
type ImageReference struct {
	URL        string  `json:"url"`
	WidthInch  float64 `json:"width_inch,omitempty"`
	HeightInch float64 `json:"height_inch,omitempty"`
	Caption    string  `json:"caption,omitempty"`
}

// ResolvedImage is the outcome for one reference: either an embeddable image
// or the error that prevented it, never both and never neither.
type ResolvedImage struct {
	Ref   ImageReference
	Image *EmbeddableImage
	Err   error
}

// Failed reports whether resolution of this reference failed.
func (r ResolvedImage) Failed() bool {
	return r.Err != nil
}

// PlaceholderText returns the visible textual substitute inserted into the
// document in place of a failed image.
func (r ResolvedImage) PlaceholderText() string {
	return fmt.Sprintf("[Image failed: %s — %v]", ShortenURL(r.Ref.URL), r.Err)
}

// Resolver runs the fetch-then-normalize pipeline over a deck's image
// references, sequentially and in input order. Failures are folded into
// their slot of the result slice; one broken image never aborts the rest.
type Resolver struct {
	fetcher    *Fetcher
	normalizer *Normalizer
	logger     func(string)
}

// NewResolver creates a Resolver over the given fetcher and normalizer.
func NewResolver(fetcher *Fetcher, normalizer *Normalizer, logger func(string)) *Resolver {
	return &Resolver{fetcher: fetcher, normalizer: normalizer, logger: logger}
}

// Resolve processes every reference and returns one result per input, order
// preserved. The output length always equals the input length.
func (r *Resolver) Resolve(ctx context.Context, refs []ImageReference) []ResolvedImage {
	resolved := make([]ResolvedImage, 0, len(refs))
	for _, ref := range refs {
		img, err := r.resolveOne(ctx, ref)
		if err != nil {
			r.log(fmt.Sprintf("[IMAGE] resolve failed for %s: %v", ShortenURL(ref.URL), err))
			resolved = append(resolved, ResolvedImage{Ref: ref, Err: err})
			continue
		}
		resolved = append(resolved, ResolvedImage{Ref: ref, Image: img})
	}
	return resolved
}

// ResolveOne resolves a single reference, for callers outside the slide loop
// such as logo handling.
func (r *Resolver) ResolveOne(ctx context.Context, ref ImageReference) (*EmbeddableImage, error) {
	return r.resolveOne(ctx, ref)
}

func (r *Resolver) resolveOne(ctx context.Context, ref ImageReference) (*EmbeddableImage, error) {
	var (
		res *FetchedResource
		err error
	)
	if IsDataURL(ref.URL) {
		res, err = DecodeDataURL(ref.URL)
	} else {
		res, err = r.fetcher.Fetch(ctx, ref.URL)
	}
	if err != nil {
		return nil, err
	}
	return r.normalizer.Normalize(res)
}

func (r *Resolver) log(message string) {
	if r.logger != nil {
		r.logger(message)
	}
}
