package client

import (
	"context"
	"net/url"

	"slotify/pkg/model"
)

type SlotClient struct {
	httpClient *HttpClient
}

func NewSlotClient(baseURL, token string) *SlotClient {
	return &SlotClient{
		httpClient: NewHttpClient(baseURL).WithToken(token),
	}
}

func (c *SlotClient) CreateSlots(ctx context.Context, input model.SlotCreationInput) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/slots", input)
}

func (c *SlotClient) CreateSlotsIdempotent(ctx context.Context, input model.SlotCreationInput, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders(ctx, "/api/slots", input, map[string]string{"Idempotency-Key": key})
}

func (c *SlotClient) ListAvailable(ctx context.Context, date string) (*Response, error) {
	q := url.Values{}
	q.Set("date", date)
	return c.httpClient.GET(ctx, "/api/slots?"+q.Encode())
}

func (c *SlotClient) ListBooked(ctx context.Context, date string) (*Response, error) {
	path := "/api/slots/booked"
	if date != "" {
		q := url.Values{}
		q.Set("date", date)
		path += "?" + q.Encode()
	}
	return c.httpClient.GET(ctx, path)
}

func (c *SlotClient) DeleteSlot(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.DELETE(ctx, "/api/slots/"+url.PathEscape(id))
}

func (c *SlotClient) Book(ctx context.Context, slotID string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/bookings/"+url.PathEscape(slotID), nil)
}

func (c *SlotClient) Cancel(ctx context.Context, slotID string) (*Response, error) {
	return c.httpClient.DELETE(ctx, "/api/bookings/"+url.PathEscape(slotID))
}

func (c *SlotClient) MyBookings(ctx context.Context) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/my-bookings")
}

func (c *SlotClient) DecodeSlot(resp *Response) (*model.Slot, error) {
	var slot model.Slot
	if err := resp.DecodeData(&slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

func (c *SlotClient) DecodeSlots(resp *Response) ([]*model.Slot, error) {
	var slots []*model.Slot
	if err := resp.DecodeData(&slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *SlotClient) DecodeBookedSlots(resp *Response) ([]*model.BookedSlot, error) {
	var slots []*model.BookedSlot
	if err := resp.DecodeData(&slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *SlotClient) DecodeCreationResult(resp *Response) (*model.SlotCreationResult, error) {
	var result model.SlotCreationResult
	if err := resp.DecodeData(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
