package host

import (
	"slices"

	"github.com/bnema/softbright/internal/shell"
)

// Layer is one visible node of the scene, in stacking order.
type Layer struct {
	Group   string     `json:"group"`
	Kind    string     `json:"kind"`
	Rect    shell.Rect `json:"rect"`
	Opacity uint8      `json:"opacity"`
}

// Scene is an in-memory scene graph. Groups stack bottom to top; a renderer
// reads it through Layers.
type Scene struct {
	groups   []*group
	changed  subscribers
	emitting bool
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{}
}

type node struct {
	kind    string
	rect    shell.Rect
	opacity uint8
	parent  *group
}

func (n *node) SetGeometry(r shell.Rect) { n.rect = r }
func (n *node) SetOpacity(o uint8)       { n.opacity = o }
func (n *node) Opacity() uint8           { return n.opacity }

func (n *node) RaiseTop() {
	if n.parent != nil {
		n.parent.raiseChild(n)
	}
}

type cursorNode struct {
	node
	x, y   int
	sprite shell.Sprite
}

func (c *cursorNode) SetPosition(x, y int) {
	c.x, c.y = x, y
	c.rect.X, c.rect.Y = x, y
}

func (c *cursorNode) SetSprite(s shell.Sprite) {
	c.sprite = s
	c.rect.Width, c.rect.Height = s.Width, s.Height
}

type group struct {
	node
	name     string
	scene    *Scene
	children []shell.Actor
}

func (g *group) Add(child shell.Actor) {
	if slices.Contains(g.children, child) {
		return
	}
	g.children = append(g.children, child)
	if n := nodeOf(child); n != nil {
		n.parent = g
	}
	g.scene.emit()
}

func (g *group) Remove(child shell.Actor) {
	i := slices.Index(g.children, child)
	if i < 0 {
		return
	}
	g.children = slices.Delete(g.children, i, i+1)
	if n := nodeOf(child); n != nil {
		n.parent = nil
	}
	g.scene.emit()
}

func (g *group) RaiseTop() {
	g.scene.raise(g)
}

func (g *group) raiseChild(n *node) {
	for i, c := range g.children {
		if nodeOf(c) == n {
			g.children = append(slices.Delete(g.children, i, i+1), c)
			return
		}
	}
}

func nodeOf(a shell.Actor) *node {
	switch v := a.(type) {
	case *node:
		return v
	case *cursorNode:
		return &v.node
	case *group:
		return &v.node
	}
	return nil
}

func (s *Scene) NewGroup(name string) shell.Group {
	g := &group{node: node{kind: "group", opacity: 255}, name: name, scene: s}
	s.groups = append(s.groups, g)
	s.emit()
	return g
}

func (s *Scene) DestroyGroup(g shell.Group) {
	for i, cur := range s.groups {
		if cur == g {
			s.groups = slices.Delete(s.groups, i, i+1)
			s.emit()
			return
		}
	}
}

func (s *Scene) NewOverlay(r shell.Rect) shell.Actor {
	return &node{kind: "overlay", rect: r}
}

func (s *Scene) NewCursorActor() shell.CursorActor {
	return &cursorNode{node: node{kind: "cursor", opacity: 255}}
}

func (s *Scene) OnActorsChanged(fn func()) func() {
	return s.changed.add(fn)
}

func (s *Scene) raise(g *group) {
	for i, cur := range s.groups {
		if cur == g {
			s.groups = append(slices.Delete(s.groups, i, i+1), g)
			return
		}
	}
}

func (s *Scene) emit() {
	if s.emitting {
		return
	}
	s.emitting = true
	defer func() { s.emitting = false }()
	s.changed.emit()
}

// Layers lists every child of every group, bottom to top.
func (s *Scene) Layers() []Layer {
	var out []Layer
	for _, g := range s.groups {
		for _, c := range g.children {
			n := nodeOf(c)
			if n == nil {
				continue
			}
			out = append(out, Layer{Group: g.name, Kind: n.kind, Rect: n.rect, Opacity: n.opacity})
		}
	}
	return out
}

// TopGroup returns the name of the topmost group.
func (s *Scene) TopGroup() string {
	if len(s.groups) == 0 {
		return ""
	}
	return s.groups[len(s.groups)-1].name
}

// subscribers is an ordered handler list.
type subscribers struct {
	next int
	ids  []int
	fns  map[int]func()
}

func (s *subscribers) add(fn func()) func() {
	if s.fns == nil {
		s.fns = make(map[int]func())
	}
	s.next++
	id := s.next
	s.ids = append(s.ids, id)
	s.fns[id] = fn
	return func() {
		delete(s.fns, id)
		if i := slices.Index(s.ids, id); i >= 0 {
			s.ids = slices.Delete(s.ids, i, i+1)
		}
	}
}

func (s *subscribers) emit() {
	for _, id := range slices.Clone(s.ids) {
		if fn, ok := s.fns[id]; ok {
			fn()
		}
	}
}

func (s *subscribers) len() int {
	return len(s.fns)
}
