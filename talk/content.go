// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import "fmt"

// ContentType identifies the payload kind of a message with attached
// content. The numeric values are protocol constants assigned by the
// service; only a message with HasContent set carries a meaningful
// content type.
type ContentType int

const (
	ContentNone     ContentType = 0
	ContentImage    ContentType = 1
	ContentVideo    ContentType = 2
	ContentAudio    ContentType = 3
	ContentCall     ContentType = 6
	ContentSticker  ContentType = 7
	ContentContact  ContentType = 13
	ContentFile     ContentType = 14
	ContentLocation ContentType = 15
)

var contentTypeNames = map[ContentType]string{
	ContentNone:     "none",
	ContentImage:    "image",
	ContentVideo:    "video",
	ContentAudio:    "audio",
	ContentCall:     "call",
	ContentSticker:  "sticker",
	ContentContact:  "contact",
	ContentFile:     "file",
	ContentLocation: "location",
}

func (t ContentType) String() string {
	if name, ok := contentTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("content(%d)", int(t))
}

// ParseContentType returns the content type with the given name.
func ParseContentType(name string) (ContentType, error) {
	for contentType, contentName := range contentTypeNames {
		if contentName == name {
			return contentType, nil
		}
	}
	return 0, fmt.Errorf("talk: unknown content type %q", name)
}
