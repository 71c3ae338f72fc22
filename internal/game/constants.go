package game

import "time"

// Playfield and body constants. These match the browser client's canvas.
const (
	FieldWidth      = 640.0
	FieldHeight     = 960.0
	WallPad         = 64.0
	StatusBarHeight = 48.0
	LossLine        = 84.0
	DropY           = 0.0
	Gravity         = 1000.0 // units/s²

	FruitFriction    = 0.006
	FruitRestitution = 0.1

	DropCooldown = 500 * time.Millisecond
	PopLifetime  = 100 * time.Millisecond
	LossGrace    = time.Second
	KeyStep      = 8.0

	DefaultDropMinTier = 0
	DefaultDropMaxTier = 4

	// GhostMask keeps previews and pop decorations out of every collision.
	GhostMask uint32 = 0x0040

	StartButtonWidth  = 512.0
	StartButtonHeight = 96.0
)

// Body labels used to tell game objects apart inside the world.
const (
	LabelFruit       = "fruit"
	LabelPreview     = "preview"
	LabelPop         = "pop"
	LabelWall        = "wall"
	LabelStartButton = "btn-start"
)
