package output

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog/log"

	"github.com/neuracq/neuracq/pkg/eeg"
	"github.com/neuracq/neuracq/pkg/eeg/config"
)

// UDPOutput exports wire-form records as one JSON datagram per record
// to every configured destination. Send failures are logged and
// counted, never propagated: a dead exporter must not end the session.
type UDPOutput struct {
	dests    []config.OutputDestination
	recvChan chan *eeg.ProcessedData
	metrics  api.WriteAPI
}

func NewUDPOutput(dests []config.OutputDestination, metrics api.WriteAPI) *UDPOutput {
	return &UDPOutput{
		dests:    dests,
		recvChan: make(chan *eeg.ProcessedData, recordBufferLength),
		metrics:  metrics,
	}
}

func (u *UDPOutput) Receive() chan<- *eeg.ProcessedData {
	return u.recvChan
}

func (u *UDPOutput) Start(ctx context.Context) error {
	destAddrs := make([]*net.UDPAddr, 0, len(u.dests))
	for _, dest := range u.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}
		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		log.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("record exporter starting")
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-u.recvChan:
			encoded, err := json.Marshal(rec)
			if err != nil {
				log.Warn().Err(err).Msg("error marshaling record")
				continue
			}

			success := true
			var bytesWritten int
			for _, destAddr := range destAddrs {
				bytesWritten, err = conn.WriteToUDP(encoded, destAddr)
				if err != nil {
					log.Error().Err(err).Msg("error writing record datagram")
					success = false
				}
			}

			go u.metrics.WritePoint(influxdb2.NewPoint("eeg.record.exported",
				map[string]string{
					"transport": "udp",
				},
				map[string]interface{}{
					"bytes_written":  bytesWritten,
					"encoded_length": len(encoded),
					"sent": func() int {
						if success {
							return 1
						}
						return 0
					}(),
				}, time.Now()))
		}
	}
}
