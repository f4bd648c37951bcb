package ble

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/config"
)

// Sources provides the documents behind the three read characteristics.
type Sources interface {
	ConfigBlob() ([]byte, error)
	Snapshot() ([]byte, error)
	OneWireReport() ([]byte, error)
}

// Ingestor receives configuration chunks from the write characteristic.
type Ingestor interface {
	Ingest(chunk []byte)
}

// Server emulates the GATT surface over TCP for bench setups without a
// radio. A request is one characteristic id (big endian uint16) followed
// by a length-prefixed payload; read responses come back as a chunked
// frame sequence ending in an empty frame, exactly like a BLE long read.
type Server struct {
	cfg      config.BLEConfig
	name     string
	sources  Sources
	ingestor Ingestor
	logger   *zap.Logger
}

func NewServer(cfg config.BLEConfig, mac string, sources Sources, ingestor Ingestor, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, name: DeviceName(mac), sources: sources, ingestor: ingestor, logger: logger}
}

// Run accepts connections until the context ends.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.ListenPort)
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.logger.Info("ble emulation listening", zap.String("addr", addr), zap.String("name", s.name))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		char, payload, err := readRequest(conn)
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("connection closed", zap.Error(err))
			}
			return
		}
		if err := s.serve(conn, char, payload); err != nil {
			s.logger.Warn("request failed", zap.Uint16("characteristic", char), zap.Error(err))
			return
		}
	}
}

func (s *Server) serve(conn net.Conn, char uint16, payload []byte) error {
	switch char {
	case CharWriteConfig:
		s.ingestor.Ingest(payload)
		return nil
	case CharReadConfig:
		return s.respond(conn, s.sources.ConfigBlob)
	case CharReadMonitor:
		return s.respond(conn, s.sources.Snapshot)
	case CharReadOneWire:
		return s.respond(conn, s.sources.OneWireReport)
	default:
		return fmt.Errorf("unknown characteristic 0x%04X", char)
	}
}

func (s *Server) respond(conn net.Conn, load func() ([]byte, error)) error {
	doc, err := load()
	if err != nil {
		s.logger.Warn("read characteristic has no document", zap.Error(err))
		doc = nil
	}
	for _, frame := range Chunk(doc, s.cfg.MTU) {
		if err := writeFrame(conn, frame); err != nil {
			return err
		}
	}
	return nil
}

func readRequest(r io.Reader) (uint16, []byte, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, nil, err
	}
	char := binary.BigEndian.Uint16(head[0:2])
	size := binary.BigEndian.Uint16(head[2:4])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return char, payload, nil
}

func writeFrame(w io.Writer, frame []byte) error {
	var head [2]byte
	binary.BigEndian.PutUint16(head[:], uint16(len(frame)))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	if len(frame) == 0 {
		return nil
	}
	_, err := w.Write(frame)
	return err
}

// ReadFrames drains one chunked response from a connection, client side.
func ReadFrames(r io.Reader) ([][]byte, error) {
	var frames [][]byte
	for {
		var head [2]byte
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return nil, err
		}
		size := binary.BigEndian.Uint16(head[:])
		frame := make([]byte, size)
		if _, err := io.ReadFull(r, frame); err != nil {
			return nil, err
		}
		frames = append(frames, frame)
		if size == 0 {
			return frames, nil
		}
	}
}

// WriteRequest sends one request, client side.
func WriteRequest(w io.Writer, char uint16, payload []byte) error {
	var head [4]byte
	binary.BigEndian.PutUint16(head[0:2], char)
	binary.BigEndian.PutUint16(head[2:4], uint16(len(payload)))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}
