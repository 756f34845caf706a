package editor

import (
	"fmt"

	"portaal/core"
)

// ErrChildLinked is returned by AddLink when the child end of the new link
// is already the child of another link. A child has exactly one parent.
var ErrChildLinked = fmt.Errorf("child element is already linked")

// LinkRegistry owns every parent/child text link of the document. It only
// stores relationships; the text values being fanned out live in the frame
// store.
type LinkRegistry struct {
	links []core.Link
}

// NewLinkRegistry creates an empty registry.
func NewLinkRegistry() *LinkRegistry {
	return &LinkRegistry{links: []core.Link{}}
}

// SetLinks bulk-replaces the registry's contents. Used on document load.
func (r *LinkRegistry) SetLinks(links []core.Link) {
	r.links = make([]core.Link, len(links))
	copy(r.links, links)
}

// Links returns all links in insertion order.
func (r *LinkRegistry) Links() []core.Link {
	out := make([]core.Link, len(r.links))
	copy(out, r.links)
	return out
}

// ParentOf returns the parent ref of the element acting as a child, if any.
func (r *LinkRegistry) ParentOf(childID string) (core.ElementRef, bool) {
	for _, l := range r.links {
		if l.Child.ID == childID {
			return l.Parent, true
		}
	}
	return core.ElementRef{}, false
}

// ChildrenOf returns every child ref of the element acting as a parent.
func (r *LinkRegistry) ChildrenOf(parentID string) []core.ElementRef {
	var children []core.ElementRef
	for _, l := range r.links {
		if l.Parent.ID == parentID {
			children = append(children, l.Child)
		}
	}
	return children
}

// Siblings returns all other children sharing the parent of the given child,
// excluding the child itself. Nil if the element is not a linked child.
func (r *LinkRegistry) Siblings(childID string) []core.ElementRef {
	parent, ok := r.ParentOf(childID)
	if !ok {
		return nil
	}
	var siblings []core.ElementRef
	for _, l := range r.links {
		if l.Parent.ID == parent.ID && l.Child.ID != childID {
			siblings = append(siblings, l.Child)
		}
	}
	return siblings
}

// AddLink appends a link. The registry enforces the one-parent invariant
// itself: linking an already-linked child fails with ErrChildLinked.
func (r *LinkRegistry) AddLink(link core.Link) error {
	if _, ok := r.ParentOf(link.Child.ID); ok {
		return ErrChildLinked
	}
	r.links = append(r.links, link)
	return nil
}

// RemoveLink removes the unique link matching both ends by value.
func (r *LinkRegistry) RemoveLink(link core.Link) {
	for i, l := range r.links {
		if l.Parent == link.Parent && l.Child == link.Child {
			r.links = append(r.links[:i], r.links[i+1:]...)
			return
		}
	}
}

// RemoveRelatedLinks removes every link in which the element appears as
// either end. Called when an element's link role is cleared or the element
// is deleted, so no dangling refs survive.
func (r *LinkRegistry) RemoveRelatedLinks(id string) {
	kept := r.links[:0]
	for _, l := range r.links {
		if l.Parent.ID != id && l.Child.ID != id {
			kept = append(kept, l)
		}
	}
	r.links = kept
}
