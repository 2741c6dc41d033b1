package document

import (
	"maps"

	"github.com/google/uuid"
)

// ElementType enumerates the kinds of elements a page can contain.
type ElementType string

const (
	ElementTypeBody         ElementType = "__body"
	ElementTypeContainer    ElementType = "container"
	ElementTypeHeroSection  ElementType = "hero_section"
	ElementTypeText         ElementType = "text"
	ElementTypeLink         ElementType = "link"
	ElementTypeImage        ElementType = "image"
	ElementTypeVideo        ElementType = "video"
	ElementTypeForm         ElementType = "form"
	ElementTypeInput        ElementType = "input"
	ElementTypeButton       ElementType = "button"
	ElementTypeTwoColumns   ElementType = "two_columns"
	ElementTypeThreeColumns ElementType = "three_columns"
	ElementTypeEmbed        ElementType = "embed"
)

var elementTypes = map[ElementType]struct{}{
	ElementTypeBody:         {},
	ElementTypeContainer:    {},
	ElementTypeHeroSection:  {},
	ElementTypeText:         {},
	ElementTypeLink:         {},
	ElementTypeImage:        {},
	ElementTypeVideo:        {},
	ElementTypeForm:         {},
	ElementTypeInput:        {},
	ElementTypeButton:       {},
	ElementTypeTwoColumns:   {},
	ElementTypeThreeColumns: {},
	ElementTypeEmbed:        {},
}

func (t ElementType) Valid() bool {
	_, ok := elementTypes[t]
	return ok
}

// Element is one node of the page tree. Children are ordered; leaves have
// none. IDs are unique across the whole tree.
type Element struct {
	ID       string         `json:"id"`
	Type     ElementType    `json:"type"`
	Props    map[string]any `json:"props,omitempty"`
	Children []Element      `json:"children,omitempty"`
}

// Clone returns a deep copy of the element and its subtree, preserving ids.
func (e Element) Clone() Element {
	cloned := Element{
		ID:   e.ID,
		Type: e.Type,
	}
	if e.Props != nil {
		cloned.Props = maps.Clone(e.Props)
	}
	if len(e.Children) > 0 {
		cloned.Children = make([]Element, len(e.Children))
		for i, child := range e.Children {
			cloned.Children[i] = child.Clone()
		}
	}
	return cloned
}

// CloneWithFreshIDs returns a deep copy of the element with a new unique id
// assigned to every node of the subtree, not just the root.
func (e Element) CloneWithFreshIDs() Element {
	cloned := e.Clone()
	cloned.reassignIDs()
	return cloned
}

func (e *Element) reassignIDs() {
	e.ID = uuid.NewString()
	for i := range e.Children {
		e.Children[i].reassignIDs()
	}
}

// Walk visits the element and every descendant in depth-first order. The
// visitor returns false to stop the walk early.
func (e Element) Walk(visit func(Element) bool) bool {
	if !visit(e) {
		return false
	}
	for _, child := range e.Children {
		if !child.Walk(visit) {
			return false
		}
	}
	return true
}

func cloneElements(elements []Element) []Element {
	cloned := make([]Element, len(elements))
	for i, element := range elements {
		cloned[i] = element.Clone()
	}
	return cloned
}

func collectIDs(elements []Element, into map[string]struct{}) {
	for _, element := range elements {
		element.Walk(func(e Element) bool {
			into[e.ID] = struct{}{}
			return true
		})
	}
}
