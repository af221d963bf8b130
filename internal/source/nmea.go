package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/motion_recorder/internal/gps"
)

// NMEA reads RMC sentences straight from a GPS receiver, without going
// through the MQTT producer.
type NMEA struct {
	open func() (io.ReadCloser, error)

	mu  sync.Mutex
	sub *nmeaSubscription
}

type nmeaSubscription struct {
	port   io.ReadCloser
	closed atomic.Bool
	done   chan struct{}
}

// NewNMEA opens the serial port on Subscribe.
func NewNMEA(portName string, baudRate int) *NMEA {
	return NewNMEAReader(func() (io.ReadCloser, error) {
		return serial.Open(SerialOptions(portName, baudRate))
	})
}

// NewNMEAReader reads sentences from whatever open returns.
func NewNMEAReader(open func() (io.ReadCloser, error)) *NMEA {
	return &NMEA{open: open}
}

// SerialOptions are the 8N1 settings GPS receivers use.
func SerialOptions(portName string, baudRate int) serial.OpenOptions {
	return serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
}

func (s *NMEA) Subscribe(h PositionHandler, onErr ErrorHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return errors.New("nmea source already subscribed")
	}

	port, err := s.open()
	if err != nil {
		return fmt.Errorf("open gps port: %w", err)
	}
	sub := &nmeaSubscription{port: port, done: make(chan struct{})}
	s.sub = sub

	go sub.run(h, onErr)
	return nil
}

// Unsubscribe closes the port. It does not wait for the reader goroutine:
// a blocking serial read is not always interrupted by Close.
func (s *NMEA) Unsubscribe() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub == nil {
		return
	}
	sub.closed.Store(true)
	if err := sub.port.Close(); err != nil {
		log.Printf("source: gps port close error: %v", err)
	}
}

func (sub *nmeaSubscription) run(h PositionHandler, onErr ErrorHandler) {
	defer close(sub.done)

	reader := bufio.NewReader(sub.port)
	for {
		line, err := reader.ReadString('\n')
		if line != "" && !sub.closed.Load() {
			handleSentence(line, h)
		}
		if err != nil {
			if !sub.closed.Load() && onErr != nil {
				onErr(fmt.Errorf("gps read: %w", err))
			}
			return
		}
	}
}

func handleSentence(line string, h PositionHandler) {
	pos, ok, err := gps.ParseSentence(line)
	switch {
	case errors.Is(err, gps.ErrNoFix):
		// receiver is still searching
	case err != nil:
		// noisy receivers emit partial sentences
	case ok:
		h(pos)
	}
}
