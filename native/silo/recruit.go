package silo

import (
	"math/big"

	"hooliganhorde/core/rewards"
	"hooliganhorde/core/types"
)

// RecruitCrate synthesizes the crate created when earned hooligans are
// recruited into the silo at gameday. Earned hooligans are valued one BDV
// each.
func RecruitCrate(model *rewards.Model, token Token, gameday uint64, earned *big.Int) (types.Crate, error) {
	if err := requirePositive("recruited amount", earned); err != nil {
		return types.Crate{}, err
	}
	if model == nil {
		model = rewards.MustModel(rewards.DefaultParams())
	}
	return model.NewCrate(gameday, earned, earned, token.ProspectsPerBDV), nil
}
