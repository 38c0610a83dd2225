package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/ariefcatur/go-hotel-booking/internal/bookingclient"
	"github.com/ariefcatur/go-hotel-booking/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"os"
	"strings"
	"time"
)

const usage = `usage:
  bookctl rooms
  bookctl book -room ID -in YYYY-MM-DD -out YYYY-MM-DD [-guests N] [-user ID]
`

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := cfg.NewLogger()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "rooms":
		err = listRooms(ctx, cfg)
	case "book":
		err = book(ctx, cfg, log, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Error(describe(err))
		os.Exit(1)
	}
}

func listRooms(ctx context.Context, cfg config.Config) error {
	rooms, err := bookingclient.New(cfg.APIBaseURL, "", 10*time.Second).Rooms(ctx)
	if err != nil {
		return err
	}
	for _, r := range rooms {
		fmt.Printf("%s\t%-12s\t%8.2f/night\t%s\n", r.ID, r.RoomType, r.PricePerNight, strings.Join(r.Amenities, ", "))
	}
	return nil
}

func book(ctx context.Context, cfg config.Config, log *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("book", flag.ExitOnError)
	room := fs.String("room", "", "room id")
	in := fs.String("in", "", "check-in date (YYYY-MM-DD)")
	out := fs.String("out", "", "check-out date (YYYY-MM-DD)")
	guests := fs.Int("guests", 1, "number of guests")
	user := fs.String("user", os.Getenv("BOOKCTL_USER"), "guest id sent as X-User-Id")
	_ = fs.Parse(args)

	if *room == "" || *user == "" {
		return fmt.Errorf("%w: -room and -user are required", booking.ErrInvalidInput)
	}
	dr, err := booking.ParseRange(*in, *out)
	if err != nil {
		return err
	}

	ctl := bookingclient.NewController(bookingclient.New(cfg.APIBaseURL, *user, 15*time.Second), *room, *guests)
	ctl.Log = log
	ctl.SetDates(dr.CheckIn, dr.CheckOut)

	ok, err := ctl.CheckAvailability(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("room %s is not available for %s\n", *room, dr)
		return nil
	}
	fmt.Printf("room %s is available for %s (%d nights)\n", *room, dr, dr.Nights())

	rd, err := ctl.StartCheckout(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("reservation %s awaiting payment until %s\n", rd.ReservationID, rd.ExpiresAt.Local().Format(time.Kitchen))
	if rd.URL != "" {
		fmt.Printf("pay at: %s\n", rd.URL)
	} else {
		fmt.Printf("checkout session: %s\n", rd.SessionID)
	}
	return nil
}

// describe turns an error into the message shown to the guest.
func describe(err error) string {
	switch {
	case errors.Is(err, bookingclient.ErrNetwork):
		return "could not reach the booking service"
	case errors.Is(err, booking.ErrInvalidRange):
		return "check the dates"
	case errors.Is(err, booking.ErrRoomUnavailable):
		return "the room was just booked by someone else"
	case errors.Is(err, booking.ErrNotFound):
		return "room not found"
	case errors.Is(err, booking.ErrSessionCreationFailed):
		return "payment session could not be created, try again"
	case errors.Is(err, booking.ErrInvalidTransition):
		return "booking state changed, please start over"
	default:
		return "booking failed"
	}
}
