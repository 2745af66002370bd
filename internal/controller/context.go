package controller

import (
	"context"

	"github.com/syncroom/server/internal/repository/connection"
)

type contextKey int

const peerCtxKey contextKey = iota

func withPeer(ctx context.Context, peer *connection.Peer) context.Context {
	return context.WithValue(ctx, peerCtxKey, peer)
}

func (c *controller) getPeerFromCtx(ctx context.Context) *connection.Peer {
	peer, ok := ctx.Value(peerCtxKey).(*connection.Peer)
	if !ok {
		return nil
	}

	return peer
}
