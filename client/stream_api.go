package client

import (
	"context"
	"errors"
	"io"
)

// Follow reads r until the stream ends, calling fn for every update, and
// returns the terminal update. r is closed on return, so with
// CancelOnDetach a canceled ctx also cancels the job when r was its last
// receiver.
func Follow(ctx context.Context, r *Receiver, fn func(Update)) (Update, error) {
	defer r.Close()
	var last Update
	for {
		u, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			if !last.Terminal() {
				return last, errors.New("progress stream ended without a terminal update")
			}
			return last, nil
		}
		if err != nil {
			return last, err
		}
		last = u
		if fn != nil {
			fn(u)
		}
	}
}
