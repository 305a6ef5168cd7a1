package app

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"estatecrm/internal/config"
	"estatecrm/internal/notify"
	"estatecrm/internal/repositories"
)

// RunNotifier consumes queued assignment notifications and delivers them over
// email and Telegram until SIGINT or SIGTERM.
func RunNotifier() {
	cfg := config.LoadConfig()
	if cfg.RabbitMQ.URL == "" {
		log.Fatal("[notifier] rabbitmq.url is not configured")
	}

	db := openDB(cfg)
	defer db.Close()
	users := repositories.NewUserRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := notify.NewQueueConsumer(cfg.RabbitMQ.URL, topology(cfg), directChannels(cfg), recipientResolver(users))
	log.Printf("[notifier] starting, exchange=%q queue=%q", cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("[notifier] stopped: ", err)
	}
	log.Printf("[notifier] shut down")
}

// recipientResolver reloads the addresses of a queued recipient.
func recipientResolver(users repositories.UserRepository) notify.RecipientResolver {
	return func(ctx context.Context, r notify.Recipient) (notify.Recipient, error) {
		if r.UserID == 0 {
			return r, nil
		}
		u, err := users.GetByID(ctx, r.UserID)
		if err != nil {
			return r, err
		}
		r.Email = u.Email
		r.TelegramChatID = u.TelegramChatID
		if r.Name == "" {
			r.Name = u.ShortName()
		}
		return r, nil
	}
}
