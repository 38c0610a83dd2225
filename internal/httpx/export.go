package httpx

import (
	"fmt"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	bookingsSheet   = "Bookings"
)

var exportHeaders = []string{
	"Reservation", "Guest", "Hotel", "Room Type", "Check-in", "Check-out",
	"Nights", "Guests", "Total", "Status", "Paid",
}

// dashboardWorkbook renders the dashboard as one sheet plus a totals row.
func dashboardWorkbook(d booking.Dashboard) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", bookingsSheet); err != nil {
		return nil, err
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(bookingsSheet, cell, header); err != nil {
			return nil, err
		}
	}

	for i, b := range d.Bookings {
		row := []any{
			b.ReservationID, b.GuestID, b.HotelName, b.RoomType,
			b.Range.CheckIn.String(), b.Range.CheckOut.String(),
			b.Range.Nights(), b.Guests, major(b.TotalCents), string(b.Status), b.IsPaid(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(bookingsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	last := len(d.Bookings) + 3
	totals := []any{"Total bookings", d.TotalBookings, "Total revenue", major(d.TotalRevenueCents)}
	if err := f.SetSheetRow(bookingsSheet, fmt.Sprintf("A%d", last), &totals); err != nil {
		return nil, err
	}
	return f, nil
}
