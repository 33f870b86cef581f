// Package catalog implements the item catalog for the Item Sorter Container.
//
// The catalog holds the items customers can order. Each item is tagged with a
// capability: Pickable items are retrieved one unit at a time by the robot from
// one of the physical bins, BulkOnly items are sold by measure and never picked.
//
// Items are created once at startup and shared by pointer across order lines.
package catalog
