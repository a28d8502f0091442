package input

import (
	"context"
	"fmt"

	"git.fiblab.net/general/common/v2/cache"
	"git.fiblab.net/general/common/v2/mongoutil"
	"git.fiblab.net/general/common/v2/protoutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/protobuf/proto"
)

// Input is everything loaded before the first frame.
type Input struct {
	Map *mapv2.Map
}

// Init loads the road network.
// Params:
//   - config: the input section decides the source
//   - cacheDir: directory of downloaded collections, empty disables the cache
//
// Algorithm:
// 1. check the cache directory
// 2. read the map from its file if one is configured
// 3. otherwise download it from MongoDB through the cache
// 4. check ids and lane geometry
func Init(config config.Config, cacheDir string) (*Input, error) {
	if !preCheckCache(cacheDir) {
		cacheDir = ""
	}
	res := &Input{}
	if config.Input.Map.File != "" {
		var m mapv2.Map
		if err := protoutil.UnmarshalFromFile(&m, config.Input.Map.File); err != nil {
			return nil, fmt.Errorf("failed to load map from file: %w", err)
		}
		res.Map = &m
	} else {
		var client *mongo.Client
		if config.Input.URI != "" {
			client = mongoutil.NewClient(config.Input.URI)
			defer client.Disconnect(context.Background())
		} else if !config.Input.Map.OnlyCache {
			return nil, fmt.Errorf("map needs a file, a MongoDB uri or only_cache")
		}
		m, err := load[mapv2.Map](client, config.Input.Map, cacheDir, nil, nil)
		if err != nil {
			return nil, err
		}
		res.Map = m
	}
	if err := checkMap(res.Map); err != nil {
		return nil, err
	}
	log.Infof("map: %d lanes, %d roads, %d junctions", len(res.Map.Lanes), len(res.Map.Roads), len(res.Map.Junctions))
	return res, nil
}

// load reads a collection from the cache, downloading it from MongoDB on a miss.
func load[T any, PT interface {
	proto.Message
	*T
}](
	client *mongo.Client,
	inputPath config.InputPath,
	cacheDir string,
	classNameMapper func(string) string,
	handler func(className string, pb any, rawBson bson.Raw) error,
	opts ...*options.FindOptions,
) (PT, error) {
	var downloadFunc func() PT
	var downloadErr error
	if !inputPath.OnlyCache {
		coll := mongoutil.GetMongoColl(client, inputPath)
		downloadFunc = func() PT {
			pb, errs := mongoutil.DownloadPbFromMongo[T, PT](context.Background(), coll, classNameMapper, handler, opts...)
			if len(errs) > 0 {
				for _, err := range errs {
					log.Errorf("failed to download: %v", err)
				}
				downloadErr = fmt.Errorf("failed to download %s.%s: %d errors", inputPath.DB, inputPath.Col, len(errs))
			}
			return pb
		}
	}
	log.Infof("start fetching from %s.%s", inputPath.DB, inputPath.Col)
	res, err := cache.LoadWithCache(cacheDir, inputPath, downloadFunc)
	if downloadErr != nil {
		return nil, downloadErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load with cache: %w", err)
	}
	log.Infof("finish fetching from %s.%s", inputPath.DB, inputPath.Col)
	return res, nil
}
