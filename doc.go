// Package mhz19b drives the Winsen MH-Z19B infrared CO2 sensor over a UART.
//
// The sensor speaks a fixed 9-byte binary protocol at 9600 8N1: every request
// is
//
//	0xFF 0x01 <command> <p0> <p1> <p2> <p3> <p4> <checksum>
//
// and the concentration query answers with a 9-byte frame whose bytes 2 and 3
// carry the reading. The checksum makes bytes 1..8 sum to zero modulo 256.
//
// A Registry hands out at most one Driver per port identifier, so every part of
// a program that talks to "/dev/serial0" shares the same serial handle. A Driver
// is either closed or opened; repeated Open or Close calls do not reopen or
// reclose the device. Commands are not serialized internally: callers must not
// issue commands on the same Driver from several goroutines at once.
//
// Refer to the datasheet for the command reference:
//
// https://www.winsen-sensor.com/d/files/infrared-gas-sensor/mh-z19b-co2-ver1_0.pdf
//
// Example usage:
//
//	reg := mhz19b.NewRegistry()
//	err := reg.WithDriver("/dev/serial0", time.Second, func(d *mhz19b.Driver) error {
//	    if err := d.SetDetectionRange5000(); err != nil {
//	        return err
//	    }
//	    ppm, err := d.GasConcentration()
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println("co2:", ppm)
//	    return nil
//	})
package mhz19b
