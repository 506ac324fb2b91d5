package recipe

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Media type discriminator values.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// Media is an attachment on an instruction step. The concrete variants are
// Image and Video, discriminated by a mandatory "type" property.
type Media interface {
	// MediaType returns the discriminator value for the variant.
	MediaType() string
}

// Image is a still image attached to a step. Alt text is required.
type Image struct {
	Path string
	Alt  string
}

// MediaType implements Media.
func (Image) MediaType() string { return MediaTypeImage }

type imageRecord struct {
	Type string `yaml:"type" json:"type"`
	Path string `yaml:"path" json:"path"`
	Alt  string `yaml:"alt" json:"alt"`
}

// MarshalYAML implements yaml.Marshaler.
func (i Image) MarshalYAML() (interface{}, error) {
	return imageRecord{Type: MediaTypeImage, Path: i.Path, Alt: i.Alt}, nil
}

// MarshalJSON implements json.Marshaler.
func (i Image) MarshalJSON() ([]byte, error) {
	return json.Marshal(imageRecord{Type: MediaTypeImage, Path: i.Path, Alt: i.Alt})
}

// Video is a video clip attached to a step. Duration, when present, uses
// the "MM:SS" form.
type Video struct {
	Path      string
	Thumbnail *string
	Duration  *string
}

// MediaType implements Media.
func (Video) MediaType() string { return MediaTypeVideo }

type videoRecord struct {
	Type      string  `yaml:"type" json:"type"`
	Path      string  `yaml:"path" json:"path"`
	Thumbnail *string `yaml:"thumbnail" json:"thumbnail"`
	Duration  *string `yaml:"duration" json:"duration"`
}

// MarshalYAML implements yaml.Marshaler.
func (v Video) MarshalYAML() (interface{}, error) {
	return videoRecord{Type: MediaTypeVideo, Path: v.Path, Thumbnail: v.Thumbnail, Duration: v.Duration}, nil
}

// MarshalJSON implements json.Marshaler.
func (v Video) MarshalJSON() ([]byte, error) {
	return json.Marshal(videoRecord{Type: MediaTypeVideo, Path: v.Path, Thumbnail: v.Thumbnail, Duration: v.Duration})
}

// MediaList is a sequence of media attachments with variant-aware decoding.
// A nil list serializes as null; an empty list serializes as [].
type MediaList []Media

// MarshalYAML implements yaml.Marshaler.
func (l MediaList) MarshalYAML() (interface{}, error) {
	if l == nil {
		return nil, nil
	}
	return []Media(l), nil
}

// MarshalJSON implements json.Marshaler.
func (l MediaList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	return json.Marshal([]Media(l))
}

// UnmarshalYAML implements yaml.Unmarshaler. Each entry is dispatched on
// its "type" property; entries with a missing or unknown type are rejected.
func (l *MediaList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: media must be a sequence", value.Line)
	}
	out := make(MediaList, 0, len(value.Content))
	for _, node := range value.Content {
		m, err := decodeMediaNode(node)
		if err != nil {
			return err
		}
		out = append(out, m)
	}
	*l = out
	return nil
}

func decodeMediaNode(node *yaml.Node) (Media, error) {
	var probe struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case MediaTypeImage:
		var raw imageRecord
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		return Image{Path: raw.Path, Alt: raw.Alt}, nil
	case MediaTypeVideo:
		var raw videoRecord
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		return Video{Path: raw.Path, Thumbnail: raw.Thumbnail, Duration: raw.Duration}, nil
	case "":
		return nil, fmt.Errorf("line %d: media entry missing type", node.Line)
	default:
		return nil, fmt.Errorf("line %d: unknown media type %q", node.Line, probe.Type)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *MediaList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(MediaList, 0, len(raws))
	for _, raw := range raws {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return err
		}
		switch probe.Type {
		case MediaTypeImage:
			var rec imageRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			out = append(out, Image{Path: rec.Path, Alt: rec.Alt})
		case MediaTypeVideo:
			var rec videoRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			out = append(out, Video{Path: rec.Path, Thumbnail: rec.Thumbnail, Duration: rec.Duration})
		case "":
			return fmt.Errorf("media entry missing type")
		default:
			return fmt.Errorf("unknown media type %q", probe.Type)
		}
	}
	*l = out
	return nil
}
