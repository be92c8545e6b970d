package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
)

func TestParseRequestAction(t *testing.T) {
	cases := []struct {
		in   string
		want RequestAction
		ok   bool
	}{
		{"accept", RequestActionAccept, true},
		{"  Accept ", RequestActionAccept, true},
		{"REJECT", RequestActionReject, true},
		{"maybe", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseRequestAction(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseRequestAction(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCreateRequestRejectsInvalidInput(t *testing.T) {
	service := &RequestService{}

	cases := []struct {
		name  string
		input CreateRequestInput
	}{
		{"missing coach", CreateRequestInput{Message: "hi"}},
		{"self pair", CreateRequestInput{CoachID: 42, Message: "hi"}},
		{"empty message", CreateRequestInput{CoachID: 7, Message: "   "}},
		{"oversized message", CreateRequestInput{CoachID: 7, Message: strings.Repeat("a", maxRequestMessageLength+1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateRequest(context.Background(), 42, tc.input)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRequestExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	request := &models.MessageRequest{
		Status:    models.RequestPending,
		ExpiresAt: now.Add(models.RequestTTL),
	}

	if request.Expired(now) {
		t.Fatal("fresh request must not be expired")
	}
	if request.Expired(now.Add(models.RequestTTL - time.Second)) {
		t.Fatal("request inside its window must not be expired")
	}
	if !request.Expired(now.Add(models.RequestTTL + time.Second)) {
		t.Fatal("request past its window must be expired")
	}
}
