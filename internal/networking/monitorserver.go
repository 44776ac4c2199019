package networking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// MonitorServer lets remote listeners subscribe to a capture over WebRTC.
//
// The general flow of a subscription is as follows:
//
//  1. The listener creates a webrtc.PeerConnection with a receive-only audio
//     transceiver, creates an offer and waits for ICE gathering to complete.
//
//  2. The listener POSTs the offer (a JSON encoded webrtc.SessionDescription)
//     to /monitor.
//
//  3. The server creates a new PeerConnection carrying the shared audio track,
//     answers the offer, waits for its own ICE gathering and replies with the
//     answer as JSON.
//
// All listeners share one track, so the capture is encoded once no matter
// how many listeners are connected.
type MonitorServer struct {
	logger *slog.Logger

	connectionConfiguration webrtc.Configuration
	track                   webrtc.TrackLocal
	mux                     *http.ServeMux

	mu              sync.Mutex
	peerConnections map[*webrtc.PeerConnection]struct{}
}

// Create a new MonitorServer sending track to every listener.
//
// If no logger is given, slog.Default() is used.
func NewMonitorServer(connectionConfig webrtc.Configuration, track webrtc.TrackLocal, logger *slog.Logger) *MonitorServer {
	if logger == nil {
		logger = slog.Default()
	}

	server := &MonitorServer{
		logger:                  logger.With("monitor server uuid", uuid.New()),
		connectionConfiguration: connectionConfig,
		track:                   track,
		mux:                     http.NewServeMux(),
		peerConnections:         make(map[*webrtc.PeerConnection]struct{}),
	}
	server.mux.HandleFunc("POST /monitor", server.listenIncomingSessionOffers)
	return server
}

func (server *MonitorServer) Handler() http.Handler {
	return server.mux
}

// Serve on addr until ctx is canceled, then close every peer connection.
func (server *MonitorServer) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	server.logger.Info("monitor server listening", "addr", addr)
	err := httpServer.ListenAndServe()
	server.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Number of listeners currently connected or connecting.
func (server *MonitorServer) NumListeners() int {
	server.mu.Lock()
	defer server.mu.Unlock()
	return len(server.peerConnections)
}

// Close every peer connection.
func (server *MonitorServer) Close() {
	server.mu.Lock()
	peerConnections := make([]*webrtc.PeerConnection, 0, len(server.peerConnections))
	for pc := range server.peerConnections {
		peerConnections = append(peerConnections, pc)
	}
	clear(server.peerConnections)
	server.mu.Unlock()

	for _, pc := range peerConnections {
		pc.Close()
	}
}

func (server *MonitorServer) listenIncomingSessionOffers(w http.ResponseWriter, r *http.Request) {
	requestLogger := server.logger.WithGroup("request").With(
		"requestUUID", uuid.New().String(),
		"remoteAddr", r.RemoteAddr,
	)
	requestLogger.Debug("new incoming session offer")

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		requestLogger.Error(
			"error while decoding new session offer from JSON",
			"err", err,
		)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(server.connectionConfiguration)
	if err != nil {
		requestLogger.Error(
			"error while creating new peer connection for listening",
			"err", err,
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	fail := func(status int, msg string, err error) {
		requestLogger.Error(msg, "err", err)
		w.WriteHeader(status)
		pc.Close()
	}

	rtpSender, err := pc.AddTrack(server.track)
	if err != nil {
		fail(http.StatusInternalServerError, "error while adding audio track", err)
		return
	}
	// Read incoming RTCP packets so interceptors can process them.
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, err := rtpSender.Read(rtcpBuf); err != nil {
				return
			}
		}
	}()

	if err := pc.SetRemoteDescription(offer); err != nil {
		fail(http.StatusBadRequest, "error while setting remote description of new peer connection", err)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		fail(http.StatusInternalServerError, "error while creating answer of new peer connection", err)
		return
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		fail(http.StatusInternalServerError, "error while setting local description of new peer connection", err)
		return
	}

	// Wait for ICE to resolve, finalizing connection
	select {
	case <-gatherComplete:
	case <-r.Context().Done():
		fail(http.StatusServiceUnavailable, "request canceled during ICE gathering", r.Context().Err())
		return
	}
	requestLogger.Debug("answering peer connection ICE resolved")

	answerJSON, err := json.Marshal(pc.LocalDescription())
	if err != nil {
		fail(http.StatusInternalServerError, "error while marshalling local description of new peer connection to JSON", err)
		return
	}

	server.mu.Lock()
	server.peerConnections[pc] = struct{}{}
	server.mu.Unlock()

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		requestLogger.Info("listener connection state change", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			server.mu.Lock()
			delete(server.peerConnections, pc)
			server.mu.Unlock()
			pc.Close()
		}
	})

	requestLogger.Debug("sending answer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(answerJSON)
}
