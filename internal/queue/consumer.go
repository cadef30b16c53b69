// Package queue also contains the background consumer that listens to
// the seats.confirmed queue and writes structured lines to logs/seats.log.
package queue

import (
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// StartSeatsConsumer connects to RabbitMQ, declares the seats.confirmed
// queue (durable), and starts consuming messages. Each message is
// appended to logs/seats.log in a single-line, human-friendly format.
// The function runs a reconnect loop with exponential backoff and keeps
// running through broker outages; processing errors reject the offending
// message without requeueing so the server continues operating.
func StartSeatsConsumer() error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(brokerURL())
        if err != nil {
            log.Printf("seats-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            time.Sleep(backoff)
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := consumeLoop(conn); err != nil {
            log.Printf("seats-consumer: consume loop ended: %v; reconnecting", err)
            time.Sleep(2 * time.Second)
            continue
        }
    }
}

func consumeLoop(conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("seats-consumer: set QoS failed: %v", err)
    }

    if _, err = ch.QueueDeclare(seatsQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(seatsQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := handleMessage(d.Body); err != nil {
            log.Printf("seats-consumer: handle message failed: %v", err)
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
    var ev SeatsConfirmedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := os.MkdirAll("logs", 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    fpath := filepath.Join("logs", "seats.log")
    f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    seats := make([]string, 0, len(ev.Seats))
    for _, n := range ev.Seats {
        seats = append(seats, fmt.Sprint(n))
    }

    line := fmt.Sprintf("[%s] Seats confirmed | order_id=%s | user=%q | payment_id=%s | amount=%d paise | expires_at=%s | seats=[%s]\n",
        ev.ConfirmedAt, ev.OrderID, ev.UserName, ev.RazorpayPaymentID, ev.AmountPaise, ev.ExpiresAt, strings.Join(seats, ","))

    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
