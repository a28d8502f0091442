// Package maptest builds small road networks for tests.
package maptest

import (
	"encoding/json"
	"fmt"

	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"google.golang.org/protobuf/encoding/protojson"
)

const DefaultMaxSpeed = 20.0

// Builder assembles a mapv2.Map from straight lanes.
type Builder struct {
	lanes     []*mapv2.Lane
	byID      map[int32]*mapv2.Lane
	roads     []*mapv2.Road
	junctions []*mapv2.Junction
}

func NewBuilder() *Builder {
	return &Builder{byID: make(map[int32]*mapv2.Lane)}
}

// Lane adds a straight driving lane of the given length.
func (b *Builder) Lane(id int32, length float64) *mapv2.Lane {
	l := &mapv2.Lane{
		Id:       id,
		Type:     mapv2.LaneType_LANE_TYPE_DRIVING,
		Turn:     mapv2.LaneTurn_LANE_TURN_STRAIGHT,
		MaxSpeed: DefaultMaxSpeed,
		Width:    3.2,
		CenterLine: &geov2.Polyline{Nodes: []*geov2.XYPosition{
			{X: 0, Y: 0},
			{X: length, Y: 0},
		}},
	}
	b.lanes = append(b.lanes, l)
	b.byID[id] = l
	return l
}

// Road adds a road made of the given lanes.
func (b *Builder) Road(id int32, laneIDs ...int32) {
	b.roads = append(b.roads, &mapv2.Road{Id: id, Name: fmt.Sprintf("road %d", id), LaneIds: laneIDs})
}

// Connect makes to a successor of from.
func (b *Builder) Connect(from, to int32) {
	b.byID[from].Successors = append(b.byID[from].Successors, &mapv2.LaneConnection{Id: to})
	b.byID[to].Predecessors = append(b.byID[to].Predecessors, &mapv2.LaneConnection{Id: from})
}

// Corridor adds a junction lane from one road lane to another.
func (b *Builder) Corridor(id, from, to int32, length float64, turn mapv2.LaneTurn) *mapv2.Lane {
	l := b.Lane(id, length)
	l.Turn = turn
	b.Connect(from, id)
	b.Connect(id, to)
	return l
}

// Overlap records that lane a at sa crosses lane c at sc, on both lanes.
func (b *Builder) Overlap(a int32, sa float64, c int32, sc float64) {
	b.byID[a].Overlaps = append(b.byID[a].Overlaps, &mapv2.LaneOverlap{
		Self:  &geov2.LanePosition{LaneId: a, S: sa},
		Other: &geov2.LanePosition{LaneId: c, S: sc},
	})
	b.byID[c].Overlaps = append(b.byID[c].Overlaps, &mapv2.LaneOverlap{
		Self:  &geov2.LanePosition{LaneId: c, S: sc},
		Other: &geov2.LanePosition{LaneId: a, S: sa},
	})
}

// Junction adds a junction owning laneIDs. program may be nil.
func (b *Builder) Junction(id int32, program *mapv2.TrafficLight, laneIDs ...int32) {
	b.junctions = append(b.junctions, &mapv2.Junction{Id: id, LaneIds: laneIDs, FixedProgram: program})
}

func (b *Builder) Map() *mapv2.Map {
	return &mapv2.Map{Lanes: b.lanes, Roads: b.roads, Junctions: b.junctions}
}

// Phase is one step of a fixed program: a duration and one state per junction lane.
type Phase struct {
	Duration float64
	States   []mapv2.LightState
}

// Program builds a fixed traffic light program.
func Program(junctionID int32, phases ...Phase) *mapv2.TrafficLight {
	type phaseJSON struct {
		Duration float64  `json:"duration"`
		States   []string `json:"states"`
	}
	doc := struct {
		JunctionID int32       `json:"junction_id"`
		Phases     []phaseJSON `json:"phases"`
	}{JunctionID: junctionID}
	for _, p := range phases {
		pj := phaseJSON{Duration: p.Duration}
		for _, s := range p.States {
			pj.States = append(pj.States, s.String())
		}
		doc.Phases = append(doc.Phases, pj)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	tl := &mapv2.TrafficLight{}
	if err := protojson.Unmarshal(data, tl); err != nil {
		panic(err)
	}
	return tl
}

// Crossing ids
const (
	CrossingJunction = 100
	QuietJunction    = 200

	WestIn   = 11 // road 1
	EastOut  = 21 // road 2
	SouthIn  = 31 // road 3
	NorthOut = 41 // road 4
	EastIn   = 51 // road 5
	WestOut  = 61 // road 6
	QuietIn  = 71 // road 7
	QuietOut = 81 // road 8

	WestEast   = 101 // straight, crosses SouthNorth at 10/10
	SouthNorth = 102 // straight, crosses EastWest at 12/10
	EastWest   = 103 // straight
	SouthEast  = 104 // right turn, merges with WestEast into EastOut
	EastSouth  = 105 // left turn, crosses WestEast at 8/14
	QuietPath  = 201

	RoadLength     = 100.0
	CorridorLength = 20.0
)

// Crossing builds a six-road junction and a two-road junction.
//
//	junction 100: WestEast, SouthNorth, EastWest, SouthEast, EastSouth
//	junction 200: QuietIn -> QuietPath -> QuietOut, never arbitrated
//
// EastSouth leads back onto road 3 reversed, modeled as its own outgoing lane 32.
func Crossing(program *mapv2.TrafficLight) *mapv2.Map {
	b := NewBuilder()
	for i, id := range []int32{WestIn, EastOut, SouthIn, NorthOut, EastIn, WestOut, QuietIn, QuietOut} {
		b.Lane(id, RoadLength)
		b.Road(int32(i+1), id)
	}
	b.Lane(32, RoadLength)
	b.Road(9, 32)

	b.Corridor(WestEast, WestIn, EastOut, CorridorLength, mapv2.LaneTurn_LANE_TURN_STRAIGHT)
	b.Corridor(SouthNorth, SouthIn, NorthOut, CorridorLength, mapv2.LaneTurn_LANE_TURN_STRAIGHT)
	b.Corridor(EastWest, EastIn, WestOut, CorridorLength, mapv2.LaneTurn_LANE_TURN_STRAIGHT)
	b.Corridor(SouthEast, SouthIn, EastOut, 10, mapv2.LaneTurn_LANE_TURN_RIGHT)
	b.Corridor(EastSouth, EastIn, 32, CorridorLength, mapv2.LaneTurn_LANE_TURN_LEFT)
	b.Overlap(WestEast, 10, SouthNorth, 10)
	b.Overlap(SouthNorth, 12, EastWest, 10)
	b.Overlap(EastSouth, 8, WestEast, 14)
	b.Junction(CrossingJunction, program, WestEast, SouthNorth, EastWest, SouthEast, EastSouth)

	b.Corridor(QuietPath, QuietIn, QuietOut, CorridorLength, mapv2.LaneTurn_LANE_TURN_STRAIGHT)
	b.Junction(QuietJunction, nil, QuietPath)
	return b.Map()
}
