// cmd/tools/notify-cli/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"notification-workers/internal/common/config"
	"notification-workers/internal/common/database"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/producer"
	"notification-workers/internal/queue"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] == "help" {
		help(os.Stdout)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := database.NewRedis(cfg.Database.Redis)
	defer rc.Close()

	if err := run(ctx, cfg, rc.Client, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// reader is the job status surface shared by every producer.
type reader interface {
	GetStatus(ctx context.Context, jobID string) (*models.Outcome, error)
	GetFailure(ctx context.Context, jobID string) (*models.Failure, error)
	Counts(ctx context.Context) (queue.Counts, error)
}

func run(ctx context.Context, cfg *config.Config, rdb redis.UniversalClient, args []string, out io.Writer) error {
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, "stderr")

	emailCfg := config.GetWorkerConfig(cfg, config.WorkerEmailSend)
	telegramCfg := config.GetWorkerConfig(cfg, config.WorkerTelegramSend)
	smsCfg := config.GetWorkerConfig(cfg, config.WorkerSMSSend)

	newQueue := func(name string) *queue.Queue {
		return queue.New(rdb, name, queue.WithMaxWaiting(int(cfg.Queue.MaxWaiting)))
	}
	email := producer.NewEmailProducer(newQueue(emailCfg.QueueName),
		producer.WithRetryPolicy(producer.RetryPolicyFromConfig(emailCfg)),
		producer.WithLogger(log))
	telegram := producer.NewTelegramProducer(newQueue(telegramCfg.QueueName),
		producer.WithRetryPolicy(producer.RetryPolicyFromConfig(telegramCfg)),
		producer.WithDefaultRecipient(cfg.Channels.Telegram.DefaultRecipientID),
		producer.WithLogger(log))
	sms := producer.NewSMSProducer(newQueue(smsCfg.QueueName),
		producer.WithRetryPolicy(producer.RetryPolicyFromConfig(smsCfg)),
		producer.WithDefaultRecipient(cfg.Channels.SMS.DefaultPhone),
		producer.WithLogger(log))

	readers := map[string]reader{
		string(models.ChannelEmail):    email,
		string(models.ChannelTelegram): telegram,
		string(models.ChannelSMS):      sms,
	}

	if len(args) == 0 {
		help(out)
		return fmt.Errorf("missing command")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "email":
		fs := flag.NewFlagSet("email", flag.ContinueOnError)
		to := fs.String("to", "", "Comma separated recipients")
		cc := fs.String("cc", "", "Comma separated cc recipients")
		bcc := fs.String("bcc", "", "Comma separated bcc recipients")
		from := fs.String("from", "", "Sender address (defaults to channels.email.default_from)")
		subject := fs.String("subject", "", "Subject line")
		message := fs.String("message", "", "HTML body")
		text := fs.String("text", "", "Markdown body, rendered to HTML")
		tmpl := fs.String("template", "", "Template name from channels.email.templates_dir")
		tag := fs.String("tag", "", "Tag header")
		priority := fs.String("priority", "medium", "high, medium or low")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		opts := models.EmailOptions{
			To:       splitList(*to),
			Cc:       splitList(*cc),
			Bcc:      splitList(*bcc),
			From:     *from,
			Subject:  *subject,
			Text:     *text,
			Tag:      *tag,
			Priority: models.Priority(*priority),
		}
		if *tmpl != "" {
			opts.Template = &models.Template{Name: *tmpl}
		}
		return printResult(out, email.SendEmail(ctx, *message, opts))

	case "telegram":
		fs := flag.NewFlagSet("telegram", flag.ContinueOnError)
		chat := fs.String("chat", "", "Chat id (defaults to channels.telegram.default_recipient_id)")
		message := fs.String("message", "", "Message text")
		parseMode := fs.String("parse-mode", "", "HTML, Markdown or MarkdownV2")
		silent := fs.Bool("silent", false, "Disable notification sound")
		priority := fs.String("priority", "medium", "high, medium or low")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return printResult(out, telegram.SendMessage(ctx, *message, models.ChatOptions{
			RecipientID:         *chat,
			ParseMode:           *parseMode,
			DisableNotification: *silent,
			Priority:            models.Priority(*priority),
		}))

	case "sms":
		fs := flag.NewFlagSet("sms", flag.ContinueOnError)
		phone := fs.String("phone", "", "E.164 phone number")
		message := fs.String("message", "", "Message text")
		sender := fs.String("sender", "", "Sender id")
		smsType := fs.String("type", "", "Transactional or Promotional")
		priority := fs.String("priority", "medium", "high, medium or low")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return printResult(out, sms.SendSMS(ctx, *message, models.SMSOptions{
			PhoneNumber: *phone,
			SenderID:    *sender,
			SMSType:     *smsType,
			Priority:    models.Priority(*priority),
		}))

	case "status", "failure", "counts":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		channel := fs.String("channel", "", "email, telegram or sms")
		id := fs.String("id", "", "Job id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		r, ok := readers[*channel]
		if !ok {
			return fmt.Errorf("unknown channel %q", *channel)
		}
		if cmd != "counts" && *id == "" {
			return fmt.Errorf("-id is required for %s", cmd)
		}
		switch cmd {
		case "status":
			outcome, err := r.GetStatus(ctx, *id)
			if err != nil {
				return err
			}
			return printJSON(out, outcome)
		case "failure":
			failure, err := r.GetFailure(ctx, *id)
			if err != nil {
				return err
			}
			return printJSON(out, failure)
		default:
			counts, err := r.Counts(ctx)
			if err != nil {
				return err
			}
			return printJSON(out, counts)
		}

	default:
		help(out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printResult(out io.Writer, res producer.Result) error {
	if err := printJSON(out, res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("enqueue rejected: %s", res.Error)
	}
	return nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func help(out io.Writer) {
	fmt.Fprintln(out, "Usage: notify-cli <command> [options]")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  email     Enqueue an email")
	fmt.Fprintln(out, "  telegram  Enqueue a telegram message")
	fmt.Fprintln(out, "  sms       Enqueue an SMS")
	fmt.Fprintln(out, "  status    Show the outcome of a completed job")
	fmt.Fprintln(out, "  failure   Show why a job failed")
	fmt.Fprintln(out, "  counts    Show queue depth per state")
	fmt.Fprintln(out, "Run 'notify-cli <command> -h' for command specific options.")
}
