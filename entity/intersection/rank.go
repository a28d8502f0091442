package intersection

import (
	"errors"
	"fmt"
	"math"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/container"
)

// errCleared marks a vehicle that has left its corridor or the entity table.
var errCleared = errors.New("vehicle cleared the junction")

// snapshot is a registered vehicle as observed at the start of the ranking.
type snapshot struct {
	id    entity.ID
	e     entity.IEntity
	index int // registration order
	info  *vehicleInfo

	corridor   entity.ILane
	onCorridor bool
	progress   float64 // along the corridor, negative before its entry
	speed      float64
	length     float64
	stopSign   bool
	onRamp     bool
}

func (s *snapshot) V() float64 {
	return s.speed
}

func (s *snapshot) Length() float64 {
	return s.length
}

func (s *snapshot) stationary() bool {
	return s.speed < stationarySpeed
}

func (s *snapshot) distanceTo(mergeS float64) float64 {
	return mergeS - s.progress
}

func (s *snapshot) eta(mergeS float64) float64 {
	return eta(s.distanceTo(mergeS), s.speed)
}

// adjustedETA penalizes left turners, used to settle mutual yields.
func (s *snapshot) adjustedETA(mergeS float64) float64 {
	t := s.eta(mergeS)
	if s.corridor.Turn() == mapv2.LaneTurn_LANE_TURN_LEFT {
		t += leftTurnPenalty
	}
	return t
}

type occupancy = container.List[*snapshot, struct{}]

// observe reads the monitors of a registered vehicle and locates it relative to its corridor.
// Returns errCleared when the vehicle should be removed, an ErrMonitorUnavailable
// error when it can not be ranked this tick.
func (m *Manager) observe(j entity.IJunction, id entity.ID, index int, info *vehicleInfo) (*snapshot, error) {
	e, err := m.ctx.Kernel().Get(id)
	if err != nil {
		return nil, errCleared
	}
	pos, err := entity.MonitorAs[entity.Position](e, entity.MonitorPosition)
	if err != nil {
		return nil, err
	}
	target, err := entity.MonitorAs[entity.Int](e, entity.MonitorTargetCorridor)
	if err != nil {
		return nil, err
	}
	speed, err := entity.MonitorAs[entity.Float](e, entity.MonitorSpeed)
	if err != nil {
		return nil, err
	}
	length, _ := entity.MonitorAs[entity.Float](e, entity.MonitorLength)
	stopSign, _ := entity.MonitorAs[entity.Bool](e, entity.MonitorHasStopSign)
	onRamp, _ := entity.MonitorAs[entity.Bool](e, entity.MonitorOnRamp)

	corridor, err := m.ctx.LaneManager().GetOrError(int32(target))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrMonitorUnavailable, err)
	}
	if corridor.ParentJunction() == nil || corridor.ParentJunction().ID() != j.ID() {
		// targets the next junction already
		return nil, errCleared
	}
	s := &snapshot{
		id:       id,
		e:        e,
		index:    index,
		info:     info,
		corridor: corridor,
		speed:    float64(speed),
		length:   float64(length),
		stopSign: bool(stopSign),
		onRamp:   bool(onRamp),
	}
	pre, _ := corridor.UniquePredecessor()
	suc, _ := corridor.UniqueSuccessor()
	switch {
	case pos.LaneID == corridor.ID():
		if pos.S >= corridor.Length()-clearedDistance {
			return nil, errCleared
		}
		s.onCorridor = true
		s.progress = pos.S
	case pre != nil && pos.LaneID == pre.ID():
		s.progress = pos.S - pre.Length()
	case suc != nil && pos.LaneID == suc.ID():
		return nil, errCleared
	default:
		return nil, fmt.Errorf("%w: %s on lane %d is not next to corridor %d",
			entity.ErrMonitorUnavailable, e.Name(), pos.LaneID, corridor.ID())
	}
	return s, nil
}

// lead returns the occupant of a corridor furthest ahead that has not yet cleared mergeS.
func lead(occ *occupancy, mergeS float64) *snapshot {
	if occ == nil {
		return nil
	}
	for n := occ.Last(); n != nil; n = n.Prev() {
		if n.S <= mergeS+n.L() {
			return n.Value
		}
	}
	return nil
}

// hasPriority reports whether w keeps the merge point ahead of v.
// wS and vS are the merge point along the corridors of w and v.
// Algorithm:
// 1. an on-ramp v never yields
// 2. w on its corridor within 20 ft of the merge point keeps it
// 3. between two vehicles at rest at stop signs, the one stopped longer goes first
// 4. otherwise w keeps the merge point if it arrives no later than v's margin
// or has a stop sign target
func hasPriority(w, v *snapshot, wS, vS float64) bool {
	if v.onRamp {
		return false
	}
	dW := w.distanceTo(wS)
	if dW < -w.length {
		return false
	}
	if w.onCorridor && dW <= proximityDistance {
		return true
	}
	if v.stopSign && w.stopSign && v.stationary() && w.stationary() {
		if w.info.stoppedFrames != v.info.stoppedFrames {
			return w.info.stoppedFrames > v.info.stoppedFrames
		}
		return w.index < v.index
	}
	return w.eta(wS) < v.eta(vS)+margin(v.corridor.Turn(), v.speed) || w.stopSign
}

// wins settles a mutual yield between a and b: the earlier left-turn adjusted
// ETA, then the longer stop, then the earlier registration.
func wins(a, b *snapshot, aS, bS float64) bool {
	ea, eb := a.adjustedETA(aS), b.adjustedETA(bS)
	if ea != eb {
		return ea < eb
	}
	if a.info.stoppedFrames != b.info.stoppedFrames {
		return a.info.stoppedFrames > b.info.stoppedFrames
	}
	return a.index < b.index
}

// rank decides Go or Stop for every vehicle registered at a junction and writes the decisions.
// Algorithm:
// 1. observe the vehicles, flagging the cleared ones for removal
// 2. index the vehicles by corridor, ordered by progress
// 3. apply the light and stop sign constraints
// 4. find the lead occupant of every intersecting corridor and who keeps the merge point
// 5. settle mutual yields and flag unavoidable conflicts
// 6. release a livelock by forcing the longest stopped vehicle to go
// 7. write the decisions to the vehicles' intersection dial
func (m *Manager) rank(frame int32, j entity.IJunction, r *activeRecord) {
	logger := log.WithFields(logrus.Fields{"junction": j.ID(), "frame": frame})

	vehicles := make([]*snapshot, 0, r.registered.Len())
	for index, id := range r.registered.Keys() {
		s, err := m.observe(j, id, index, r.info[id])
		if errors.Is(err, errCleared) {
			r.pendingRemoval.Add(id)
			continue
		}
		if err != nil {
			logger.Debugf("skip %s: %v", id, err)
			continue
		}
		if s.stationary() {
			s.info.stoppedFrames++
		} else {
			s.info.stoppedFrames = 0
		}
		vehicles = append(vehicles, s)
	}
	if len(vehicles) == 0 {
		return
	}

	nodesByCorridor := make(map[int32][]*container.ListNode[*snapshot, struct{}])
	for _, s := range vehicles {
		id := s.corridor.ID()
		nodesByCorridor[id] = append(nodesByCorridor[id], &container.ListNode[*snapshot, struct{}]{S: s.progress, Value: s})
	}
	occupants := make(map[int32]*occupancy, len(nodesByCorridor))
	for id, nodes := range nodesByCorridor {
		occ := &occupancy{}
		occ.Merge(nodes)
		occupants[id] = occ
	}

	nodes := lo.Map(vehicles, func(s *snapshot, _ int) *node {
		n := &node{
			vehicle:    s,
			holdOffset: s.corridor.HoldOffset(),
			isOnRamp:   s.onRamp,
		}
		m.applyDevices(n)
		for _, c := range j.Conflicts(s.corridor.ID()) {
			if s.distanceTo(c.SelfS) < -s.length {
				continue
			}
			w := lead(occupants[c.Other.ID()], c.OtherS)
			if w == nil {
				continue
			}
			n.conflicts = append(n.conflicts, conflictEntry{
				other:            w,
				selfS:            c.SelfS,
				otherS:           c.OtherS,
				otherHasPriority: hasPriority(w, s, c.OtherS, c.SelfS),
			})
		}
		return n
	})

	for _, n := range nodes {
		n.settle()
		n.decide()
	}

	if forced := m.breakLivelock(j, nodes, r.registered.Len()); forced != nil {
		logger.Infof("livelock: force %s to go after %d stopped frames", forced.vehicle.e.Name(), forced.vehicle.info.stoppedFrames)
	}

	for _, n := range nodes {
		s := n.vehicle
		s.info.state = n.state
		s.info.stoppedFor = entity.NilID
		for _, c := range n.conflicts {
			if c.otherHasPriority {
				s.info.stoppedFor = c.other.id
				break
			}
		}
		s.e.SetDial(entity.DialIntersection, entity.Command{
			Junction: j.ID(),
			Stop:     n.state == Stop,
			Distance: n.stopAt(),
		})
	}
}

// applyDevices applies the traffic light and the stop sign of the vehicle's corridor.
func (m *Manager) applyDevices(n *node) {
	s := n.vehicle
	toHold := n.holdOffset - s.progress

	if s.corridor.IsNoEntry() {
		if s.info.stopForLight || (toHold >= 0 && stoppingDistance(s.speed) <= toHold) {
			n.stopDueToLight = true
		}
	}
	s.info.stopForLight = n.stopDueToLight

	if s.stopSign && !s.info.mandatoryStopDone {
		switch {
		case toHold < -holdTolerance:
			// entered without a full stop, nothing left to serve
			s.info.mandatoryStopDone = true
		case s.stationary() && toHold <= holdTolerance:
			s.info.mandatoryStopDone = true
		default:
			n.stopDueToSign = true
		}
	}
}

// settle drops the priority of the vehicles that lose a mutual yield to n, and
// flags n when it can not stop before a merge point it yields at and would reach it
// within the margin of the other vehicle. On-ramp vehicles are never flagged.
func (n *node) settle() {
	s := n.vehicle
	for i := range n.conflicts {
		c := &n.conflicts[i]
		if !c.otherHasPriority {
			continue
		}
		if hasPriority(s, c.other, c.selfS, c.otherS) && wins(s, c.other, c.selfS, c.otherS) {
			c.otherHasPriority = false
			continue
		}
		d := s.distanceTo(c.selfS)
		if !n.isOnRamp && stoppingDistance(s.speed) > d &&
			math.Abs(s.eta(c.selfS)-c.other.eta(c.otherS)) < margin(s.corridor.Turn(), s.speed) {
			n.stopDueToCollisionAvoidance = true
		}
	}
}

func (n *node) decide() {
	n.state = Go
	if n.stopDueToLight || n.stopDueToSign || n.stopDueToCollisionAvoidance {
		n.state = Stop
		return
	}
	for _, c := range n.conflicts {
		if c.otherHasPriority {
			n.state = Stop
			return
		}
	}
}

// stopAt is where along its corridor the vehicle must stop: the hold offset,
// or short of the nearest merge point it yields at once it is past the hold offset.
func (n *node) stopAt() float64 {
	s := n.vehicle
	if n.stopDueToLight || n.stopDueToSign || s.progress+stoppingDistance(s.speed) <= n.holdOffset {
		return n.holdOffset
	}
	stop := math.Inf(1)
	for _, c := range n.conflicts {
		if c.otherHasPriority && c.selfS > s.progress {
			stop = math.Min(stop, lo.Clamp(c.selfS-proximityDistance, s.progress, c.selfS))
		}
	}
	if math.IsInf(stop, 1) {
		return n.holdOffset
	}
	return stop
}

// breakLivelock forces one vehicle to go when nobody at the junction may go and
// the longest stopped vehicle, stopped only by other vehicles, has waited livelockFrames.
// The candidate is the longest stopped one, or with randomTieBreak a random
// one among those past the threshold weighted by stopped frames.
// registered bounds the registration index of the nodes.
func (m *Manager) breakLivelock(j entity.IJunction, nodes []*node, registered int) *node {
	if lo.SomeBy(nodes, func(n *node) bool { return n.state == Go }) {
		return nil
	}
	candidates := lo.Filter(nodes, func(n *node, _ int) bool {
		return n.yielding() && n.vehicle.info.stoppedFrames >= m.livelockFrames
	})
	if len(candidates) == 0 {
		return nil
	}
	var forced *node
	if m.randomTieBreak {
		weights := lo.Map(candidates, func(n *node, _ int) float64 { return float64(n.vehicle.info.stoppedFrames) })
		forced = candidates[j.Random().DiscreteDistribution(weights)]
	} else {
		pq := container.NewPriorityQueue[*node]()
		for _, n := range candidates {
			// frames first, registration order breaks ties: index/registered < 1
			pq.HeapPush(n, -float64(n.vehicle.info.stoppedFrames)+float64(n.vehicle.index)/float64(registered))
		}
		forced, _ = pq.HeapPop()
	}
	forced.state = Go
	for i := range forced.conflicts {
		forced.conflicts[i].otherHasPriority = false
	}
	return forced
}
