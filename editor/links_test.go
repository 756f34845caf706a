package editor

import (
	"testing"

	"portaal/core"
)

func ref(id, frameID string) core.ElementRef {
	return core.ElementRef{ID: id, FrameID: frameID}
}

func TestAddLink_SingleParentInvariant(t *testing.T) {
	r := NewLinkRegistry()

	if err := r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c1", "f2")}); err != nil {
		t.Fatalf("AddLink failed: %v", err)
	}
	// Same child under a different parent must be rejected.
	err := r.AddLink(core.Link{Parent: ref("p2", "f1"), Child: ref("c1", "f2")})
	if err != ErrChildLinked {
		t.Errorf("Expected ErrChildLinked, got %v", err)
	}
	if len(r.Links()) != 1 {
		t.Errorf("Rejected link must not be stored, have %d links", len(r.Links()))
	}
}

func TestAddLink_ParentMayHaveManyChildren(t *testing.T) {
	r := NewLinkRegistry()
	for _, child := range []string{"c1", "c2", "c3"} {
		if err := r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref(child, "f2")}); err != nil {
			t.Fatalf("AddLink(%s) failed: %v", child, err)
		}
	}
	if got := len(r.ChildrenOf("p1")); got != 3 {
		t.Errorf("ChildrenOf: got %d children, want 3", got)
	}
}

func TestParentOf(t *testing.T) {
	r := NewLinkRegistry()
	r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c1", "f2")})

	parent, ok := r.ParentOf("c1")
	if !ok || parent.ID != "p1" {
		t.Errorf("ParentOf(c1) = %v, %v; want p1, true", parent, ok)
	}
	if _, ok := r.ParentOf("p1"); ok {
		t.Error("ParentOf(p1) should report no parent")
	}
}

func TestSiblings_ExcludesSelf(t *testing.T) {
	r := NewLinkRegistry()
	r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c1", "f2")})
	r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c2", "f3")})
	r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c3", "f4")})

	siblings := r.Siblings("c2")
	if len(siblings) != 2 {
		t.Fatalf("Siblings(c2): got %d, want 2", len(siblings))
	}
	for _, s := range siblings {
		if s.ID == "c2" {
			t.Error("Siblings must exclude the element itself")
		}
	}
}

func TestSiblings_UnlinkedElement(t *testing.T) {
	r := NewLinkRegistry()
	if siblings := r.Siblings("nobody"); siblings != nil {
		t.Errorf("Siblings of unlinked element should be nil, got %v", siblings)
	}
}

func TestRemoveLink_MatchesBothEnds(t *testing.T) {
	r := NewLinkRegistry()
	r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c1", "f2")})
	r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c2", "f3")})

	// Wrong child: nothing removed.
	r.RemoveLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c9", "f9")})
	if len(r.Links()) != 2 {
		t.Fatalf("Mismatched RemoveLink must be a no-op, have %d links", len(r.Links()))
	}

	r.RemoveLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c1", "f2")})
	if len(r.Links()) != 1 {
		t.Fatalf("Expected 1 link after removal, got %d", len(r.Links()))
	}
	if _, ok := r.ParentOf("c1"); ok {
		t.Error("c1 should be unlinked after removal")
	}
}

func TestRemoveRelatedLinks(t *testing.T) {
	r := NewLinkRegistry()
	r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c1", "f2")})
	r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c2", "f3")})
	r.AddLink(core.Link{Parent: ref("p2", "f1"), Child: ref("c3", "f4")})

	// p1 appears as parent in two links; both must go, the third stays.
	r.RemoveRelatedLinks("p1")
	links := r.Links()
	if len(links) != 1 {
		t.Fatalf("Expected 1 link after RemoveRelatedLinks, got %d", len(links))
	}
	if links[0].Parent.ID != "p2" {
		t.Errorf("Wrong link survived: %+v", links[0])
	}
}

func TestSetLinks_ReplacesContents(t *testing.T) {
	r := NewLinkRegistry()
	r.AddLink(core.Link{Parent: ref("p1", "f1"), Child: ref("c1", "f2")})

	r.SetLinks([]core.Link{
		{Parent: ref("p9", "f1"), Child: ref("c9", "f2")},
	})
	links := r.Links()
	if len(links) != 1 || links[0].Parent.ID != "p9" {
		t.Errorf("SetLinks did not replace contents: %+v", links)
	}
}
