// Package source adapts external sensor feeds into push subscriptions the
// recorder can attach to and detach from.
package source

import (
	"github.com/relabs-tech/motion_recorder/internal/gps"
	"github.com/relabs-tech/motion_recorder/internal/motion"
)

type (
	MotionHandler   func(motion.Sample)
	PositionHandler func(gps.Position)
	ErrorHandler    func(error)
)

// MotionSource pushes accelerometer samples to a handler until unsubscribed.
type MotionSource interface {
	Subscribe(h MotionHandler) error
	Unsubscribe()
}

// PositionSource pushes GPS positions to a handler until unsubscribed.
// Non-fatal feed problems are reported through onErr.
type PositionSource interface {
	Subscribe(h PositionHandler, onErr ErrorHandler) error
	Unsubscribe()
}
