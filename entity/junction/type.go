package junction

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// ITrafficLight is what a junction needs from its traffic light implementation.
type ITrafficLight interface {
	Prepare()          // write the light states to the corridors
	Update(dt float64) // advance the program

	Set(tl *mapv2.TrafficLight) error // replace the program
	Unset()                           // remove the program, all green
}
