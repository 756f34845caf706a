package core

import "encoding/json"

// ObjectKind discriminates the canvas object variants. Every object carries
// its kind as a `type` tag so consumers can switch exhaustively instead of
// probing optional fields.
type ObjectKind string

const (
	KindFrame     ObjectKind = "frame"
	KindRectangle ObjectKind = "rectangle"
	KindText      ObjectKind = "text"
	KindImage     ObjectKind = "image"
)

// LinkRole marks a text element as one end of a text link. The empty string
// means the element is not linkable.
type LinkRole string

const (
	RoleNone   LinkRole = ""
	RoleParent LinkRole = "parent"
	RoleChild  LinkRole = "child"
)

// Fill is an RGB fill color, each channel 0-255.
type Fill struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Object holds the attributes shared by every canvas object. Geometry is in
// integer canvas units; element geometry is relative to the owning frame's
// origin. Opacity is a 0-100 percentage.
type Object struct {
	ID      string     `json:"id"`
	Kind    ObjectKind `json:"type"`
	Name    string     `json:"name"`
	X       int        `json:"x"`
	Y       int        `json:"y"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Fill    Fill       `json:"fill"`
	Opacity int        `json:"opacity"`

	// BeingDrawn is true only while the pointer is actively sizing the
	// object. Never set on a persisted document.
	BeingDrawn bool `json:"beingDrawn,omitempty"`
}

// Frame is a top-level container, analogous to an artboard. Its element
// slice is the paint order: last element is topmost. Frame IDs are unique
// across the whole document.
type Frame struct {
	Object
	Elements          []FrameElement `json:"elements"`
	SelectedForExport bool           `json:"selectedForExport,omitempty"`
}

// FrameElement is a shape owned by exactly one frame. FrameID is a
// back-reference used for lookup only; the frame's element slice owns the
// element's lifetime. Kind-specific fields are meaningful only for the
// matching kind.
type FrameElement struct {
	Object
	FrameID string `json:"frameId"`

	// KindText
	TextValue   string   `json:"textValue,omitempty"`
	BeingEdited bool     `json:"beingEdited,omitempty"`
	LinkRole    LinkRole `json:"linkRole,omitempty"`

	// KindImage
	ImageURL    string `json:"imageUrl,omitempty"`
	ImageWidth  int    `json:"imageWidth,omitempty"`
	ImageHeight int    `json:"imageHeight,omitempty"`
	ImageKey    string `json:"imageKey,omitempty"`
}

// ElementRef identifies a frame element from outside its frame.
type ElementRef struct {
	ID      string `json:"id"`
	FrameID string `json:"frameId"`
}

// Link is a parent-to-child relationship between two text elements, used to
// fan out edits. A child appears in at most one link; a parent may appear in
// many.
type Link struct {
	Parent ElementRef `json:"parentElement"`
	Child  ElementRef `json:"childElement"`
}

// EditorDocument is the complete externally-persisted unit: the whole frame
// tree plus every text link. It is loaded and saved wholesale; last full
// write wins.
type EditorDocument struct {
	Frames []Frame `json:"frames"`
	Links  []Link  `json:"links"`
}

// EncodeDocument serializes a document for persistence.
func EncodeDocument(doc EditorDocument) ([]byte, error) {
	return json.Marshal(doc)
}

// DecodeDocument parses a persisted document. A nil or empty payload decodes
// to an empty document so freshly created projects load cleanly.
func DecodeDocument(data []byte) (EditorDocument, error) {
	if len(data) == 0 {
		return EditorDocument{Frames: []Frame{}, Links: []Link{}}, nil
	}
	var doc EditorDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return EditorDocument{}, err
	}
	if doc.Frames == nil {
		doc.Frames = []Frame{}
	}
	if doc.Links == nil {
		doc.Links = []Link{}
	}
	return doc, nil
}
