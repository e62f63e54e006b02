// Package service provides the service bus that device actions are executed
// through.
//
// A service is addressed by (domain, service), for example ("knx", "turn_on").
// Handlers are registered per integration at startup:
//
//	bus := service.NewBus(cfg.GetServiceTimeout())
//	fwd := service.NewMQTTForwarder(mqttClient, 1)
//	fwd.RegisterOn(bus, "knx")
//
// In production the MQTTForwarder publishes a command for the protocol
// bridge, and the resulting state change arrives later on the state topic.
// In dev mode LocalSwitch applies the state directly so automations can be
// exercised without hardware.
//
// Every failure surfaced by Bus.Call is a *core.ServiceInvocationError.
package service
