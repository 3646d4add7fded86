package limiter

import (
	"fmt"
	"sort"
	"time"
)

// Platform is the provider a quota is counted against.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformGemini    Platform = "gemini"
)

// Bucket is a named rate-limit configuration.
type Bucket struct {
	Name       string        `json:"name"`
	Platform   Platform      `json:"platform"`
	LimitType  string        `json:"limitType"`
	CallsLimit int           `json:"callsLimit"`
	Window     time.Duration `json:"-"`
}

// WindowMillis is the window length in milliseconds.
func (b Bucket) WindowMillis() int64 {
	return b.Window.Milliseconds()
}

// Registry bucket names.
const (
	BucketAPIDefault         = "api_default"
	BucketAPIPostCreation    = "api_post_creation"
	BucketAPIImageGeneration = "api_image_generation"
	BucketGeminiText         = "gemini_text"
	BucketGeminiImage        = "gemini_image"
	BucketFacebookPost       = "facebook_post"
	BucketInstagramPost      = "instagram_post"
	BucketTwitterPost        = "twitter_post"
	BucketLinkedInPost       = "linkedin_post"
)

// registry is fixed at compile time. Adding a bucket is a code change.
var registry = map[string]Bucket{
	BucketAPIDefault:         {Platform: PlatformGemini, LimitType: "api_default", CallsLimit: 100, Window: time.Minute},
	BucketAPIPostCreation:    {Platform: PlatformGemini, LimitType: "api_post_creation", CallsLimit: 10, Window: time.Minute},
	BucketAPIImageGeneration: {Platform: PlatformGemini, LimitType: "api_image_generation", CallsLimit: 5, Window: time.Minute},

	BucketGeminiText:  {Platform: PlatformGemini, LimitType: "text_generation", CallsLimit: 60, Window: time.Minute},
	BucketGeminiImage: {Platform: PlatformGemini, LimitType: "image_generation", CallsLimit: 10, Window: time.Minute},

	BucketFacebookPost:  {Platform: PlatformFacebook, LimitType: "post_creation", CallsLimit: 200, Window: time.Hour},
	BucketInstagramPost: {Platform: PlatformInstagram, LimitType: "post_creation", CallsLimit: 25, Window: 24 * time.Hour},
	BucketTwitterPost:   {Platform: PlatformTwitter, LimitType: "post_creation", CallsLimit: 300, Window: 3 * time.Hour},
	BucketLinkedInPost:  {Platform: PlatformLinkedIn, LimitType: "post_creation", CallsLimit: 100, Window: 24 * time.Hour},
}

// Lookup returns the named bucket.
func Lookup(name string) (Bucket, bool) {
	b, ok := registry[name]
	if !ok {
		return Bucket{}, false
	}
	b.Name = name
	return b, true
}

// MustLookup is Lookup for names fixed at wiring time. It panics on an unknown name.
func MustLookup(name string) Bucket {
	b, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("limiter: unknown bucket %q", name))
	}
	return b
}

// Buckets returns every registered bucket sorted by name.
func Buckets() []Bucket {
	out := make([]Bucket, 0, len(registry))
	for name := range registry {
		b, _ := Lookup(name)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
