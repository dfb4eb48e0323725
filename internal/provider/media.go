package provider

import "github.com/JakeFAU/followwatch/internal/tracker"

// SelectLargest returns the candidate with the greatest pixel area.
// Ties keep the first candidate encountered. ok is false for an empty slice.
func SelectLargest(candidates []tracker.ImageCandidate) (best tracker.ImageCandidate, ok bool) {
	for i, c := range candidates {
		if i == 0 || c.Area() > best.Area() {
			best = c
		}
	}
	return best, len(candidates) > 0
}

// ImageURLs extracts one image URL per still image in posts: the largest candidate of
// each photo (or untyped post), and of each photo frame inside a carousel. Videos and
// video frames are skipped.
func ImageURLs(posts []tracker.Post) []string {
	var urls []string
	for _, p := range posts {
		switch p.Kind {
		case tracker.MediaPhoto, tracker.MediaUnknown:
			if c, ok := SelectLargest(p.Candidates); ok {
				urls = append(urls, c.URL)
			}
		case tracker.MediaCarousel:
			for _, child := range p.Children {
				if child.Kind != tracker.MediaPhoto {
					continue
				}
				if c, ok := SelectLargest(child.Candidates); ok {
					urls = append(urls, c.URL)
				}
			}
		}
	}
	return urls
}
