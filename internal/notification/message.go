// Package notification turns reservation events into admin mail. Messages are
// immutable snapshots taken inside the originating transaction, so delivery
// never touches request-scoped state.
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/pkg/mailer"
)

// Kind names the event a message describes.
type Kind string

const (
	KindNewReservation      Kind = "new_reservation"
	KindCancellationRequest Kind = "cancellation_request"
)

// Message is everything delivery needs about one reservation event.
type Message struct {
	Kind               Kind      `json:"kind"`
	ReservationID      string    `json:"reservationId"`
	Purpose            string    `json:"purpose"`
	DisplayMessage     string    `json:"displayMessage,omitempty"`
	Description        string    `json:"description,omitempty"`
	CancellationReason string    `json:"cancellationReason,omitempty"`
	Visibility         string    `json:"visibility"`
	AttendeeCount      int       `json:"attendeeCount"`
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	OwnerName          string    `json:"ownerName"`
	OwnerEmail         string    `json:"ownerEmail"`
	Recipients         []string  `json:"recipients"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Snapshot copies the fields of res that a notification needs.
func Snapshot(kind Kind, res *models.Reservation, recipients []string, now time.Time) Message {
	msg := Message{
		Kind:          kind,
		ReservationID: res.ID,
		Purpose:       res.Purpose,
		Visibility:    string(res.Visibility),
		AttendeeCount: res.AttendeeCount,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		OwnerName:     "Unknown",
		OwnerEmail:    res.OwnerEmail,
		Recipients:    append([]string(nil), recipients...),
		CreatedAt:     now.UTC(),
	}
	if res.OwnerDisplayName != nil && *res.OwnerDisplayName != "" {
		msg.OwnerName = *res.OwnerDisplayName
	}
	if res.DisplayMessage != nil {
		msg.DisplayMessage = *res.DisplayMessage
	}
	if res.Description != nil {
		msg.Description = *res.Description
	}
	if res.CancellationReason != nil {
		msg.CancellationReason = *res.CancellationReason
	}
	return msg
}

// Render builds the mail for one recipient.
func (m Message) Render(appName, to string) mailer.Email {
	const layout = "2006-01-02 15:04 MST"
	var subject string
	var b strings.Builder

	switch m.Kind {
	case KindCancellationRequest:
		subject = fmt.Sprintf("【%s】キャンセル申請: %s", appName, m.Purpose)
		b.WriteString("予約のキャンセル申請がありました。\n\n")
	default:
		subject = fmt.Sprintf("【%s】新規予約申請: %s", appName, m.Purpose)
		b.WriteString("新規の予約申請がありました。\n\n")
	}

	fmt.Fprintf(&b, "申請者: %s (%s)\n", m.OwnerName, m.OwnerEmail)
	fmt.Fprintf(&b, "目的: %s\n", m.Purpose)
	fmt.Fprintf(&b, "日時: %s - %s\n", m.StartTime.UTC().Format(layout), m.EndTime.UTC().Format(layout))
	fmt.Fprintf(&b, "人数: %d人\n", m.AttendeeCount)
	fmt.Fprintf(&b, "詳細: %s\n", orNone(m.Description))
	if m.Kind == KindCancellationRequest {
		fmt.Fprintf(&b, "キャンセル理由: %s\n", orNone(m.CancellationReason))
	}
	b.WriteString("\n管理画面から確認・承認してください。\n")

	return mailer.Email{To: []string{to}, Subject: subject, Body: b.String()}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "なし"
	}
	return s
}
