package alarm

import (
	"context"

	"google.golang.org/grpc/metadata"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

// Metadata keys carrying the command actor.
const (
	actorHostnameKey = "x-actor-hostname"
	actorUsernameKey = "x-actor-username"
)

// WithActor attaches actor to outgoing call metadata.
func WithActor(ctx context.Context, actor *domain.Actor) context.Context {
	if actor == nil {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx,
		actorHostnameKey, actor.Hostname,
		actorUsernameKey, actor.Username,
	)
}

// ActorFromIncoming extracts the actor from incoming call metadata.
func ActorFromIncoming(ctx context.Context) *domain.Actor {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}

	hostnames := md.Get(actorHostnameKey)
	usernames := md.Get(actorUsernameKey)

	if len(hostnames) == 0 || len(usernames) == 0 {
		return nil
	}

	return &domain.Actor{
		Hostname: hostnames[0],
		Username: usernames[0],
	}
}
