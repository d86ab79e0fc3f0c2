package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ajay020/slotbook/pipeline"
	"github.com/pkg/errors"
)

// Slot is a bookable appointment slot.
type Slot struct {
	ID       string `json:"_id"`
	Date     string `json:"date"` // YYYY-MM-DD
	Time     string `json:"time"` // HH:MM
	Status   string `json:"status"`
	IsBooked bool   `json:"isBooked"`
}

type slotsResponse struct {
	Slots []Slot `json:"slots"`
}

type createSlotRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// SlotsByDate lists the slots available on a date (YYYY-MM-DD).
func (c *Client) SlotsByDate(ctx context.Context, date string) ([]Slot, error) {
	if date == "" {
		return nil, errors.Wrap(ErrValidation, "[Client.SlotsByDate] date is required")
	}

	var payload slotsResponse
	err := c.send(ctx, pipeline.Request{
		Method: http.MethodGet,
		Path:   "/slots",
		Query:  url.Values{"date": []string{date}},
	}, &payload)
	if err != nil {
		return nil, err
	}
	return payload.Slots, nil
}

// BookSlot books the slot for the logged-in user.
func (c *Client) BookSlot(ctx context.Context, slotID string) error {
	if slotID == "" {
		return errors.Wrap(ErrValidation, "[Client.BookSlot] slot id is required")
	}
	return c.send(ctx, pipeline.Request{
		Method: http.MethodPost,
		Path:   "/bookings/" + slotID,
		Body:   struct{}{},
	}, nil)
}

// CreateSlot publishes a new slot. The API accepts this only from admin
// accounts; the client sends it regardless and surfaces the server's
// verdict, since the cached role may be stale.
func (c *Client) CreateSlot(ctx context.Context, date, timeOfDay string) (*Slot, error) {
	if date == "" || timeOfDay == "" {
		return nil, errors.Wrap(ErrValidation, "[Client.CreateSlot] date and time are required")
	}

	var slot Slot
	err := c.send(ctx, pipeline.Request{
		Method: http.MethodPost,
		Path:   "/slots",
		Body:   createSlotRequest{Date: date, Time: timeOfDay},
	}, &slot)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}
