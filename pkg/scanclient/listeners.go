package scanclient

import (
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/push"
)

func decodePayload(event *push.Event, obj interface{}) error {
	if err := event.Decode(obj); err != nil {
		return errors.WithStack(&ParseError{What: string(event.Kind) + " payload", Err: err})
	}
	return nil
}

func (c *Client) OnJobStatus(fn func(job *Job)) push.Subscription {
	return c.On(push.EventJobStatus, func(event *push.Event) error {
		job := &Job{}
		if err := decodePayload(event, job); err != nil {
			return err
		}
		fn(job)
		return nil
	})
}

func (c *Client) OnScannerStatus(fn func(scanner *Scanner)) push.Subscription {
	return c.On(push.EventScannerStatus, func(event *push.Event) error {
		scanner := &Scanner{}
		if err := decodePayload(event, scanner); err != nil {
			return err
		}
		fn(scanner)
		return nil
	})
}

func (c *Client) OnBatchScanProgress(fn func(progress *BatchScanProgress)) push.Subscription {
	return c.On(push.EventBatchScanProgress, func(event *push.Event) error {
		progress := &BatchScanProgress{}
		if err := decodePayload(event, progress); err != nil {
			return err
		}
		fn(progress)
		return nil
	})
}

func (c *Client) OnConnected(fn func()) push.Subscription {
	return c.On(push.EventConnected, func(event *push.Event) error {
		fn()
		return nil
	})
}

func (c *Client) OnDisconnected(fn func()) push.Subscription {
	return c.On(push.EventDisconnected, func(event *push.Event) error {
		fn()
		return nil
	})
}

func (c *Client) OnError(fn func(err error)) push.Subscription {
	return c.On(push.EventError, func(event *push.Event) error {
		fn(event.Err)
		return nil
	})
}
